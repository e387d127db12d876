package ir

// Version constants for the document schema and engine.
const (
	// SchemaVersion is the scene/storyboard document schema version.
	SchemaVersion = "1"

	// EngineVersion is the storyviz engine version, recorded on persisted runs.
	EngineVersion = "0.1.0"
)
