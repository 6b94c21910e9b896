// Package harness runs scripted scenarios against result queues.
//
// A scenario declares a set of queues (optionally chained to a parent),
// a list of steps that enqueue outcomes, clear queues or run queries, and
// assertions over the resulting trace. Every run is journaled to SQLite so
// it can be inspected later with `resultq trace`.
//
// # Scenario Format
//
// Scenarios are YAML (or CUE) files with the following structure:
//
//	name: chained_fallthrough
//	description: "Child delegates to its parent when empty"
//	queues:
//	  - name: root
//	    created_default: false
//	  - name: child
//	    parent: root
//	steps:
//	  - queue: root
//	    success: { value: { id: 1 } }
//	  - queue: child
//	    query: { include_created: true }
//	    expect: { value: { id: 1 }, created: false }
//	assertions:
//	  - type: trace_order
//	    events: ["child:parent", "root:local"]
//
// # Assertion Types
//
//   - pending_count: number of outcomes left in a queue
//   - trace_count: number of consume decisions by a queue, optionally by source
//   - trace_order: consume decisions appear in the given "queue:source" order
//   - journal_count: number of journaled steps for a queue, optionally by op
//
// # Deterministic Testing
//
// Trace events are stamped by a logical clock and runs use a fixed run ID
// (scenario.run_id or testutil.DefaultRunID), so repeated runs produce
// identical traces for golden comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/basic.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        fmt.Println(msg)
//	    }
//	}
//
// In tests, RunWithGolden compares the trace against
// testdata/golden/{name}.golden.
package harness
