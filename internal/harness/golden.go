package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/resultq/internal/canon"
)

// TraceSnapshot captures the trace of a scenario run for golden comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

// toCanonicalMap converts the snapshot to plain maps for canon.Marshal.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	events := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":   ev.Seq,
			"queue": ev.Queue,
			"op":    ev.Op,
		}
		if ev.Source != "" {
			m["source"] = ev.Source
		}
		if ev.Outcome != "" {
			m["outcome"] = ev.Outcome
		}
		if ev.Shape != "" {
			m["shape"] = ev.Shape
		}
		if ev.Content != nil {
			m["content"] = ev.Content
		}
		if ev.Propagate {
			m["propagate"] = true
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		events[i] = m
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         events,
	}
}

// MarshalTrace renders a trace as canonical JSON.
func MarshalTrace(scenarioName string, trace []TraceEvent) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: trace}
	return canon.Marshal(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
