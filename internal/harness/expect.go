package harness

import (
	"errors"
	"fmt"

	"github.com/roach88/resultq/internal/canon"
	"github.com/roach88/resultq/internal/resultq"
)

// checkQuery compares a query's outcome with the step's expect clause and
// returns one message per mismatch. Steps without expect only fail on
// structural errors.
func (h *Harness) checkQuery(i int, step Step, p *resultq.Pending, err error) []string {
	e := step.Expect
	prefix := fmt.Sprintf("steps[%d] (%s)", i, step.Queue)

	if err != nil {
		if e == nil || e.Error == "" {
			return []string{fmt.Sprintf("%s: query failed: %v", prefix, err)}
		}
		if code := string(resultq.CodeOf(err)); code != e.Error {
			return []string{fmt.Sprintf("%s: expected error %s, got %v", prefix, e.Error, err)}
		}
		return nil
	}
	if e != nil && e.Error != "" {
		return []string{fmt.Sprintf("%s: expected error %s, query returned a result", prefix, e.Error)}
	}
	if p == nil {
		return []string{fmt.Sprintf("%s: fallback produced no result", prefix)}
	}

	res, awaitErr := p.Await(h.ctx)
	if payload, rejected := p.Rejection(); rejected {
		if e == nil {
			return nil
		}
		if e.Rejected == nil {
			return []string{fmt.Sprintf("%s: unexpected rejection: %v", prefix, awaitErr)}
		}
		return checkRejection(prefix, e.Rejected, awaitErr, payload)
	}
	if awaitErr != nil {
		return []string{fmt.Sprintf("%s: await failed: %v", prefix, awaitErr)}
	}
	if e == nil {
		return nil
	}
	if e.Rejected != nil {
		return []string{fmt.Sprintf("%s: expected rejection, resolved with %v", prefix, res.Value)}
	}

	var msgs []string
	if e.Value != nil && !sameJSON(e.Value, res.Value) {
		msgs = append(msgs, fmt.Sprintf("%s: value = %s, expected %s", prefix, render(res.Value), render(e.Value)))
	}
	if e.Created != nil {
		switch {
		case res.Shape != resultq.ShapeCreated:
			msgs = append(msgs, fmt.Sprintf("%s: expected created flag, result shape is %s", prefix, res.Shape))
		case res.Created != *e.Created:
			msgs = append(msgs, fmt.Sprintf("%s: created = %t, expected %t", prefix, res.Created, *e.Created))
		}
	}
	if e.AffectedRows != nil {
		switch {
		case res.Shape != resultq.ShapeAffectedRows:
			msgs = append(msgs, fmt.Sprintf("%s: expected affected rows, result shape is %s", prefix, res.Shape))
		case !sameJSON(e.AffectedRows, res.AffectedRows):
			msgs = append(msgs, fmt.Sprintf("%s: affected_rows = %s, expected %s",
				prefix, render(res.AffectedRows), render(e.AffectedRows)))
		}
	}
	return msgs
}

func checkRejection(prefix string, want *RejectExpect, err error, payload any) []string {
	var base *resultq.Error
	wrapped := errors.As(err, &base) && base.Code == resultq.ErrCodeBaseError

	var msgs []string
	if want.Wrapped != nil && wrapped != *want.Wrapped {
		msgs = append(msgs, fmt.Sprintf("%s: wrapped = %t, expected %t", prefix, wrapped, *want.Wrapped))
	}

	raw := payload
	message := fmt.Sprint(payload)
	switch {
	case wrapped:
		raw = base.Payload
		message = base.Message
	case isError(payload):
		message = payload.(error).Error()
	}

	if want.Message != "" && message != want.Message {
		msgs = append(msgs, fmt.Sprintf("%s: rejection message = %q, expected %q", prefix, message, want.Message))
	}
	if want.Payload != nil && !sameJSON(want.Payload, traceContent(raw)) {
		msgs = append(msgs, fmt.Sprintf("%s: rejection payload = %s, expected %s", prefix, render(raw), render(want.Payload)))
	}
	return msgs
}

func isError(v any) bool {
	_, ok := v.(error)
	return ok
}

// sameJSON compares values by canonical JSON, so YAML ints, CUE floats
// and Go ints with equal numeric values match.
func sameJSON(a, b any) bool {
	ja, errA := canon.Marshal(a)
	jb, errB := canon.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}

func render(v any) string {
	b, err := canon.Marshal(traceContent(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
