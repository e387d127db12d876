// Package component defines the visual component capability set and the
// per-engine registry that instantiates and owns components.
//
// A component is opaque to the engine. It exposes a fixed lifecycle (Show,
// Hide) and an explicit name -> Action map. The registry captures that map
// once, when the component is instantiated, so dispatch is a map lookup and
// never reflection.
//
// Identity rules:
//   - InstantiateAll constructs specs in declaration order
//   - A name is instantiated at most once per Registry
//   - Get returns the same instance on every call
//   - Close tears components down in reverse declaration order
package component
