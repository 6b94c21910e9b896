package resultq

import (
	"errors"
	"fmt"
)

// Error is the error type native to result queues.
//
// Three kinds exist:
//   - BaseError: generic wrapper applied to non-error failure payloads at enqueue time
//   - InvalidQueryResult: a dequeued entry is neither a Success nor a Failure
//   - EmptyQueryQueue: no outcome anywhere in the chain and no fallback
//
// The two structural kinds are returned synchronously from Query and never
// travel through a Pending handle.
type Error struct {
	// Code identifies the error kind.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Queue names the queue that raised the error, if it has a name.
	Queue string

	// Payload holds the original failure content for BaseError,
	// or the offending entry for InvalidQueryResult.
	Payload any
}

// ErrorCode categorizes queue errors.
type ErrorCode string

const (
	// ErrCodeBaseError marks a wrapped non-error failure payload.
	ErrCodeBaseError ErrorCode = "BASE_ERROR"

	// ErrCodeInvalidQueryResult marks a corrupted queue entry.
	ErrCodeInvalidQueryResult ErrorCode = "INVALID_QUERY_RESULT"

	// ErrCodeEmptyQueryQueue marks a query with no result available.
	ErrCodeEmptyQueryQueue ErrorCode = "EMPTY_QUERY_QUEUE"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrBaseError          = &Error{Code: ErrCodeBaseError, Message: "base error"}
	ErrInvalidQueryResult = &Error{Code: ErrCodeInvalidQueryResult, Message: "invalid query result"}
	ErrEmptyQueryQueue    = &Error{Code: ErrCodeEmptyQueryQueue, Message: "empty query queue"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Queue != "" {
		return fmt.Sprintf("%s: %s (queue=%s)", e.Code, e.Message, e.Queue)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var te *Error
	if !errors.As(target, &te) {
		return false
	}
	return te.Code == e.Code
}

// IsBaseError returns true if err is a wrapped failure payload.
func IsBaseError(err error) bool {
	return hasCode(err, ErrCodeBaseError)
}

// IsInvalidQueryResult returns true if err signals a corrupted queue entry.
func IsInvalidQueryResult(err error) bool {
	return hasCode(err, ErrCodeInvalidQueryResult)
}

// IsEmptyQueryQueue returns true if err signals that no result was available.
func IsEmptyQueryQueue(err error) bool {
	return hasCode(err, ErrCodeEmptyQueryQueue)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

// NewBaseError wraps a non-error failure payload.
func NewBaseError(payload any) *Error {
	return &Error{
		Code:    ErrCodeBaseError,
		Message: fmt.Sprint(payload),
		Payload: payload,
	}
}

func newInvalidQueryResultError(queue string, entry any) *Error {
	return &Error{
		Code:    ErrCodeInvalidQueryResult,
		Message: fmt.Sprintf("queued entry of type %T is neither success nor failure", entry),
		Queue:   queue,
		Payload: entry,
	}
}

func newEmptyQueryQueueError(queue string) *Error {
	return &Error{
		Code:    ErrCodeEmptyQueryQueue,
		Message: "no query results are queued and no fallback is configured",
		Queue:   queue,
	}
}

// isErrorLike reports whether v can travel as an error without wrapping.
func isErrorLike(v any) bool {
	_, ok := v.(error)
	return ok
}
