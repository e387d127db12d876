// Package harness runs scene conformance scenarios.
//
// A scenario pairs a scene document with a storyboard, optionally scripts
// the algorithm events, renders once with a deterministic run ID and wall
// clock, and checks assertions against the recorded call trace and the
// persisted run.
//
// # Scenario Format
//
//	name: bfs_single_enqueue
//	description: "One enqueue event reaches the queue widget"
//	scene: ../scenes/bfs.yaml
//	storyboard: ../storyboards/intro.yaml
//	mode: fast
//	events:
//	  - type: enqueue
//	    step_index: 0
//	    payload: { node: [0, 0] }
//	assertions:
//	  - type: calls_contain
//	    component: queue
//	    action: add_element
//	    args: { element: [0, 0] }
//	  - type: call_order
//	    calls: [queue.show, queue.add_element]
//	  - type: call_count
//	    component: queue
//	    action: add_element
//	    count: 1
//	  - type: final_state
//	    expect: { status: completed }
//
// Paths are relative to the scenario file. When events are listed they
// replace the adapter named by the scene's algorithm.
//
// # Assertion Types
//
//   - calls_contain: a call to component.action with matching args (subset)
//   - call_order: the listed component.action calls appear in order
//   - call_count: component.action appears exactly count times
//   - final_state: fields of the persisted run row (status, mode, error, ...)
//
// # Determinism
//
// Every scenario runs against a fresh in-memory SQLite store with a fixed
// run ID (scenario run_id, default "test-run-default") and a stepping wall
// clock, so traces are byte-identical across runs and suitable for golden
// comparison.
package harness
