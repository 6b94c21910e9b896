package resultq

import (
	"context"
	"fmt"
)

// Shape describes how a successful result was negotiated.
type Shape int

const (
	// ShapeValue is a bare value.
	ShapeValue Shape = iota
	// ShapeCreated pairs the value with a created flag.
	ShapeCreated
	// ShapeAffectedRows pairs the value with the affected rows.
	ShapeAffectedRows
)

// String returns the shape name used in traces.
func (s Shape) String() string {
	switch s {
	case ShapeCreated:
		return "created"
	case ShapeAffectedRows:
		return "affected_rows"
	default:
		return "value"
	}
}

// Result is a resolved query result.
// Created is meaningful only for ShapeCreated, AffectedRows only for
// ShapeAffectedRows.
type Result struct {
	Shape        Shape
	Value        any
	Created      bool
	AffectedRows []any
}

// RejectedValue is returned by Await when a query was rejected with a
// payload that is not an error (ConvertNonErrors(false)).
type RejectedValue struct {
	Value any
}

func (r *RejectedValue) Error() string {
	return fmt.Sprintf("query rejected with %v", r.Value)
}

// Pending is the handle returned by Query. It settles exactly once.
//
// Handles built by this package are settled before they are returned;
// handles supplied by a FallbackFunc may settle later.
type Pending struct {
	done     chan struct{}
	result   Result
	reason   any
	rejected bool
}

// FallbackFunc produces a result when no outcome is available.
// Its handle is returned to the caller unchanged.
type FallbackFunc func() *Pending

// NewPending creates an unsettled handle. Settle it with Resolve or Reject.
func NewPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Resolved returns a handle already resolved with r.
func Resolved(r Result) *Pending {
	p := NewPending()
	p.Resolve(r)
	return p
}

// ResolvedValue returns a handle resolved with a bare value.
func ResolvedValue(v any) *Pending {
	return Resolved(Result{Shape: ShapeValue, Value: v})
}

// Rejected returns a handle already rejected with payload.
func Rejected(payload any) *Pending {
	p := NewPending()
	p.Reject(payload)
	return p
}

// Resolve settles the handle with r. Panics if already settled.
func (p *Pending) Resolve(r Result) {
	p.result = r
	close(p.done)
}

// Reject settles the handle with payload. Panics if already settled.
func (p *Pending) Reject(payload any) {
	p.reason = payload
	p.rejected = true
	close(p.done)
}

// Done returns a channel closed once the handle settles.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether the handle has settled.
func (p *Pending) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Await waits for the handle to settle or ctx to end.
// A rejection payload that is an error is returned as is; any other
// payload is returned as *RejectedValue.
func (p *Pending) Await(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	if p.rejected {
		if err, ok := p.reason.(error); ok {
			return Result{}, err
		}
		return Result{}, &RejectedValue{Value: p.reason}
	}
	return p.result, nil
}

// Rejection returns the raw rejection payload of a settled handle.
// The second value is false if the handle resolved or has not settled.
func (p *Pending) Rejection() (any, bool) {
	if !p.Settled() || !p.rejected {
		return nil, false
	}
	return p.reason, true
}
