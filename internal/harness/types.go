package harness

// Trace operation names.
const (
	OpEnqueue = "enqueue"
	OpClear   = "clear"
	OpConsume = "consume"
)

// TraceEvent records one queue operation or consume decision.
type TraceEvent struct {
	Seq   int64  `json:"seq"`
	Queue string `json:"queue"`
	Op    string `json:"op"`

	// Source is set for consume events: local, parent, fallback or none.
	Source string `json:"source,omitempty"`

	// Outcome is success or failure for enqueue events and local consumes.
	Outcome string `json:"outcome,omitempty"`

	// Shape is the negotiated shape of a local success.
	Shape string `json:"shape,omitempty"`

	// Content is the enqueued or consumed payload.
	Content any `json:"content,omitempty"`

	// Propagate is set for clear events that cascade to the parent chain.
	Propagate bool `json:"propagate,omitempty"`

	// Error is the structural error code of a failed consume decision.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// RunID identifies the run in the journal.
	RunID string `json:"run_id"`

	// Trace contains every event in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Pending holds the number of outcomes left in each queue.
	Pending map[string]int `json:"pending"`
}

// NewResult creates a new passing result.
func NewResult(runID string) *Result {
	return &Result{
		Pass:    true,
		RunID:   runID,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Pending: make(map[string]int),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
