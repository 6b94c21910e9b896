package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_SingleQueue(t *testing.T) {
	scenario := &Scenario{
		Name:        "single_queue",
		Description: "Success, failure, then an empty queue",
		Queues:      []QueueDef{{Name: "q"}},
		Steps: []Step{
			{Queue: "q", Success: &OutcomeDef{Value: "a"}},
			{Queue: "q", Failure: &OutcomeDef{Value: "boom"}},
			{Queue: "q", Query: &QueryDef{}},
			{Queue: "q", Query: &QueryDef{}},
			{Queue: "q", Query: &QueryDef{}, Expect: &Expect{Error: "EMPTY_QUERY_QUEUE"}},
		},
	}

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_ParentChain(t *testing.T) {
	scenario := &Scenario{
		Name:        "parent_chain",
		Description: "Delegation to the parent, then a propagating clear",
		Queues: []QueueDef{
			{Name: "root"},
			{Name: "child", Parent: "root"},
		},
		Steps: []Step{
			{Queue: "root", Success: &OutcomeDef{Value: map[string]any{"id": 1}}},
			{Queue: "child", Query: &QueryDef{IncludeCreated: true}, Expect: &Expect{Created: boolPtr(true)}},
			{Queue: "child", Clear: &ClearDef{Propagate: true}},
		},
	}

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario := &Scenario{
		Name:        "single_queue",
		Description: "Same trace checked through AssertGolden",
		Queues:      []QueueDef{{Name: "q"}},
		Steps: []Step{
			{Queue: "q", Success: &OutcomeDef{Value: "a"}},
			{Queue: "q", Failure: &OutcomeDef{Value: "boom"}},
			{Queue: "q", Query: &QueryDef{}},
			{Queue: "q", Query: &QueryDef{}},
			{Queue: "q", Query: &QueryDef{}, Expect: &Expect{Error: "EMPTY_QUERY_QUEUE"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, scenario.Name, result))
}

func TestMarshalTrace(t *testing.T) {
	trace := []TraceEvent{
		{Seq: 1, Queue: "q", Op: OpClear, Propagate: true},
		{Seq: 2, Queue: "q", Op: OpConsume, Source: "none", Error: "EMPTY_QUERY_QUEUE"},
	}

	got, err := MarshalTrace("snap", trace)
	require.NoError(t, err)

	want := `{"scenario_name":"snap","trace":[` +
		`{"op":"clear","propagate":true,"queue":"q","seq":1},` +
		`{"error":"EMPTY_QUERY_QUEUE","op":"consume","queue":"q","seq":2,"source":"none"}]}`
	assert.Equal(t, want, string(got))
}
