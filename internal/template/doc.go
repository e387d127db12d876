// Package template compiles and resolves parameter templates.
//
// A parameter value is either a literal or a string containing references
// of the form ${namespace.path}. Values are parsed once, at load time, into
// an Expr tree:
//
//	Literal   non-template value, returned unchanged
//	Ref       a string that is exactly one reference; resolves to the
//	          referenced value with its native type
//	Interp    references embedded in surrounding text; resolves to a string
//	List/Map  containers whose elements are compiled recursively
//
// "$${" escapes a literal "${".
//
// Resolution walks the dotted path through nested mappings (and list or
// array indices) of a namespace provided by a Context. An intermediate
// segment that is not a mapping is a ResolutionError, never an absent value.
// Resolution is pure: inputs are never mutated.
package template
