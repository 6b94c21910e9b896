// Package journal persists harness runs to SQLite.
//
// A run is opened with BeginRun, receives one Step per trace event
// (enqueue, clear, or consume decision) and is closed with FinishRun.
// Steps are keyed by (run_id, seq), where seq comes from the run's
// deterministic clock, so reads are always in execution order.
//
// Run IDs are UUIDv7 strings in production (UUIDv7Generator) and fixed
// strings in tests.
package journal
