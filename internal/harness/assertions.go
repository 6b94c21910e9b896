package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/resultq/internal/journal"
)

// AssertionContext provides what journal-backed assertions need.
type AssertionContext struct {
	Ctx     context.Context
	Journal *journal.Store
	RunID   string
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", ev.Seq, ev.Queue, ev.Op)
			if ev.Source != "" {
				fmt.Fprintf(&buf, " source=%s", ev.Source)
			}
			if ev.Outcome != "" {
				fmt.Fprintf(&buf, " outcome=%s", ev.Outcome)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertPendingCount:
			err = assertPendingCount(result, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertJournalCount:
			err = assertJournalCount(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func assertPendingCount(result *Result, a Assertion) error {
	got, ok := result.Pending[a.Queue]
	if !ok {
		return fmt.Errorf("unknown queue %q", a.Queue)
	}
	if got != a.Count {
		return &AssertionError{
			Type:     AssertPendingCount,
			Expected: fmt.Sprintf("%d pending outcomes in %s", a.Count, a.Queue),
			Actual:   fmt.Sprintf("%d pending", got),
		}
	}
	return nil
}

// assertTraceCount counts consume decisions made by a queue, optionally
// filtered by source.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Op != OpConsume || ev.Queue != a.Queue {
			continue
		}
		if a.Source != "" && ev.Source != a.Source {
			continue
		}
		count++
	}

	if count != a.Count {
		what := "consume decisions"
		if a.Source != "" {
			what = a.Source + " consume decisions"
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s in %s", a.Count, what, a.Queue),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that consume events appear in the given order.
// Each expected event matches the first unmatched event after the previous
// match; intervening events are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	for _, want := range a.Events {
		queue, source, _ := strings.Cut(want, ":")
		found := false
		for pos < len(trace) {
			ev := trace[pos]
			pos++
			if ev.Op == OpConsume && ev.Queue == queue && ev.Source == source {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("consume events in order: %v", a.Events),
				Actual:   fmt.Sprintf("%s not found after earlier events", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertJournalCount counts journaled steps for a queue, optionally
// filtered by operation.
func assertJournalCount(actx *AssertionContext, a Assertion) error {
	if actx == nil || actx.Journal == nil {
		return fmt.Errorf("journal_count requires a journal")
	}
	steps, err := actx.Journal.ReadQueueSteps(actx.Ctx, actx.RunID, a.Queue)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	count := 0
	for _, st := range steps {
		if a.Op == "" || st.Op == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d journaled steps for %s (op=%q)", a.Count, a.Queue, a.Op),
			Actual:   fmt.Sprintf("%d steps", count),
		}
	}
	return nil
}
