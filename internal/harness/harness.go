package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/resultq/internal/canon"
	"github.com/roach88/resultq/internal/journal"
	"github.com/roach88/resultq/internal/resultq"
	"github.com/roach88/resultq/internal/testutil"
)

// Options configures a scenario run.
type Options struct {
	// Journal receives the run. If nil, a fresh in-memory journal is used
	// and closed when the run ends.
	Journal *journal.Store

	// RunID overrides the scenario's run ID.
	RunID string

	// Logger receives run progress. Defaults to a discarding logger.
	Logger *slog.Logger
}

// Harness executes one scenario against freshly built queues.
type Harness struct {
	ctx     context.Context
	queues  map[string]*resultq.Queue
	clock   *testutil.Clock
	journal *journal.Store
	runID   string
	logger  *slog.Logger
	result  *Result

	// journalErr holds the first journal write failure. Observer callbacks
	// cannot return errors, so it is checked after every step.
	journalErr error
}

// Run executes a scenario with an in-memory journal and returns the result.
//
// The returned error reports infrastructure failures only; expectation and
// assertion failures are collected in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithOptions(context.Background(), scenario, Options{})
}

// RunWithOptions executes a scenario.
//
// Execution flow:
// 1. Open (or reuse) the journal and begin the run
// 2. Build queues in declaration order
// 3. Execute steps, recording a trace event per operation and consume decision
// 4. Evaluate assertions and finish the run
func RunWithOptions(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	st := opts.Journal
	if st == nil {
		var err error
		st, err = journal.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
		}
		defer st.Close()
	}

	runID := opts.RunID
	if runID == "" {
		runID = testutil.NewFixedRunID(scenario.RunID).Generate()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h := &Harness{
		ctx:     ctx,
		queues:  make(map[string]*resultq.Queue, len(scenario.Queues)),
		clock:   testutil.NewClock(),
		journal: st,
		runID:   runID,
		logger:  logger.With("scenario", scenario.Name, "run_id", runID),
		result:  NewResult(runID),
	}

	if err := st.BeginRun(ctx, runID, scenario.Name); err != nil {
		return nil, err
	}

	if err := h.buildQueues(scenario.Queues); err != nil {
		return nil, fmt.Errorf("failed to build queues: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(i, step); err != nil {
			return nil, fmt.Errorf("failed to execute step %d: %w", i, err)
		}
	}

	for name, q := range h.queues {
		h.result.Pending[name] = q.Len()
	}

	actx := &AssertionContext{Ctx: ctx, Journal: st, RunID: runID}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}

	if err := st.FinishRun(ctx, runID, h.result.Pass, h.result.Errors); err != nil {
		return nil, err
	}

	h.logger.Info("scenario finished", "pass", h.result.Pass, "errors", len(h.result.Errors))
	return h.result, nil
}

func (h *Harness) buildQueues(defs []QueueDef) error {
	for _, def := range defs {
		var parent *resultq.Queue
		if def.Parent != "" {
			p, ok := h.queues[def.Parent]
			if !ok {
				return fmt.Errorf("queue %q: unknown parent %q", def.Name, def.Parent)
			}
			parent = p
		}

		h.queues[def.Name] = resultq.New(resultq.Config{
			Name:            def.Name,
			Parent:          parent,
			StopPropagation: def.StopPropagation,
			CreatedDefault:  def.CreatedDefault,
			Fallback:        fallbackFunc(def.Fallback),
			Logger:          h.logger,
			Observer:        h.observe,
		})
	}
	return nil
}

func (h *Harness) executeStep(i int, step Step) error {
	q, ok := h.queues[step.Queue]
	if !ok {
		return fmt.Errorf("unknown queue %q", step.Queue)
	}

	switch {
	case step.Success != nil:
		q.QueueSuccess(step.Success.Value, outcomeOptions(step.Success)...)
		h.record(TraceEvent{Queue: step.Queue, Op: OpEnqueue, Outcome: "success", Content: step.Success.Value})
	case step.Failure != nil:
		q.QueueFailure(step.Failure.Value, outcomeOptions(step.Failure)...)
		h.record(TraceEvent{Queue: step.Queue, Op: OpEnqueue, Outcome: "failure", Content: step.Failure.Value})
	case step.Clear != nil:
		var opts []resultq.ClearOption
		if step.Clear.Propagate {
			opts = append(opts, resultq.PropagateClear())
		}
		q.ClearQueue(opts...)
		h.record(TraceEvent{Queue: step.Queue, Op: OpClear, Propagate: step.Clear.Propagate})
	case step.Query != nil:
		p, err := q.QueryWith(queryOptions(step.Query))
		for _, msg := range h.checkQuery(i, step, p, err) {
			h.result.AddError(msg)
		}
	default:
		return fmt.Errorf("step has no operation")
	}

	h.logger.Debug("step completed", "step", i, "queue", step.Queue)
	return h.journalErr
}

// observe receives consume decisions from every queue in the scenario.
func (h *Harness) observe(e resultq.Event) {
	ev := TraceEvent{Queue: e.Queue, Op: OpConsume, Source: string(e.Source)}
	if e.Source == resultq.SourceLocal && e.Err == nil {
		ev.Outcome = e.Kind.String()
		ev.Content = traceContent(e.Content)
		if e.Kind == resultq.KindSuccess {
			ev.Shape = e.Shape.String()
		}
	}
	if e.Err != nil {
		ev.Error = string(resultq.CodeOf(e.Err))
	}
	h.record(ev)
}

// record stamps an event, appends it to the trace and journals it.
func (h *Harness) record(ev TraceEvent) {
	ev.Seq = h.clock.Next()
	h.result.Trace = append(h.result.Trace, ev)

	if h.journalErr != nil {
		return
	}
	h.journalErr = h.journal.WriteStep(h.ctx, journal.Step{
		RunID:   h.runID,
		Seq:     ev.Seq,
		Queue:   ev.Queue,
		Op:      ev.Op,
		Source:  ev.Source,
		Outcome: ev.Outcome,
		Detail:  stepDetail(ev),
	})
}

func outcomeOptions(def *OutcomeDef) []resultq.OutcomeOption {
	var opts []resultq.OutcomeOption
	if def.WasCreated != nil {
		opts = append(opts, resultq.WasCreated(*def.WasCreated))
	}
	if def.AffectedRows != nil {
		opts = append(opts, resultq.AffectedRows(def.AffectedRows...))
	}
	if def.ConvertNonErrors != nil {
		opts = append(opts, resultq.ConvertNonErrors(*def.ConvertNonErrors))
	}
	return opts
}

func queryOptions(def *QueryDef) resultq.QueryOptions {
	return resultq.QueryOptions{
		Fallback:            fallbackFunc(def.Fallback),
		IncludeCreated:      def.IncludeCreated,
		IncludeAffectedRows: def.IncludeAffectedRows,
		StopPropagation:     def.StopPropagation,
	}
}

// fallbackFunc turns a scenario fallback into a producer. Fallback
// rejections carry the raw payload: the queue never normalizes them.
func fallbackFunc(def *FallbackDef) resultq.FallbackFunc {
	if def == nil {
		return nil
	}
	return func() *resultq.Pending {
		if def.Failure != nil {
			return resultq.Rejected(def.Failure)
		}
		return resultq.ResolvedValue(def.Value)
	}
}

// traceContent reduces error payloads to their messages so traces stay
// serializable.
func traceContent(v any) any {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return v
}

// stepDetail renders the payload part of an event as canonical JSON.
func stepDetail(ev TraceEvent) string {
	detail := map[string]any{}
	if ev.Content != nil {
		detail["content"] = ev.Content
	}
	if ev.Shape != "" {
		detail["shape"] = ev.Shape
	}
	if ev.Propagate {
		detail["propagate"] = true
	}
	if ev.Error != "" {
		detail["error"] = ev.Error
	}
	b, err := canon.Marshal(detail)
	if err != nil {
		return canon.MustString(map[string]any{"content": fmt.Sprint(ev.Content)})
	}
	return string(b)
}
