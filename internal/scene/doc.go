// Package scene implements the scene engine: the facade that owns a scene's
// live components and its event binding table, executes beats, and routes
// algorithm events to component actions.
//
// Every beat action falls into exactly one category:
//
//   - scene-level actions (show_title, outro, show_widgets, hide_widgets,
//     wait), executed by the engine itself;
//   - custom handlers registered with WithHandler;
//   - play_events, which drains an algorithm adapter and dispatches each
//     event through the binding table.
//
// Execution is synchronous and strictly ordered. An Engine is owned by one
// orchestrator run and is not safe for concurrent use.
package scene
