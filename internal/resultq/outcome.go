package resultq

// Kind distinguishes the two outcome variants.
type Kind int

const (
	// KindSuccess marks an outcome that resolves a query.
	KindSuccess Kind = iota + 1
	// KindFailure marks an outcome that rejects a query.
	KindFailure
)

// String returns the lowercase kind name used in traces.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is a sealed interface for queued entries.
// Only Success and Failure implement it.
type Outcome interface {
	outcome() Kind
}

// Meta holds optional per-entry options.
// Nil pointers mean "not explicitly set".
type Meta struct {
	// WasCreated overrides the created flag for IncludeCreated queries.
	WasCreated *bool

	// AffectedRows is returned for IncludeAffectedRows queries.
	// Nil resolves to an empty slice.
	AffectedRows []any

	// ConvertNonErrors disables BaseError wrapping when explicitly false.
	// Only consulted by QueueFailure.
	ConvertNonErrors *bool
}

// Success is a queued outcome that resolves the consuming query.
type Success struct {
	Content any
	Meta    Meta
}

func (Success) outcome() Kind { return KindSuccess }

// Failure is a queued outcome that rejects the consuming query.
// Content is the rejection payload, already normalized at enqueue time.
type Failure struct {
	Content any
	Meta    Meta
}

func (Failure) outcome() Kind { return KindFailure }

// OutcomeOption sets a Meta field on a queued outcome.
type OutcomeOption func(*Meta)

// WasCreated sets the created flag reported to IncludeCreated queries.
func WasCreated(created bool) OutcomeOption {
	return func(m *Meta) { m.WasCreated = &created }
}

// AffectedRows sets the rows reported to IncludeAffectedRows queries.
func AffectedRows(rows ...any) OutcomeOption {
	return func(m *Meta) {
		if rows == nil {
			rows = []any{}
		}
		m.AffectedRows = rows
	}
}

// ConvertNonErrors controls BaseError wrapping of non-error failure payloads.
func ConvertNonErrors(convert bool) OutcomeOption {
	return func(m *Meta) { m.ConvertNonErrors = &convert }
}

func buildMeta(opts []OutcomeOption) Meta {
	var m Meta
	for _, opt := range opts {
		opt(&m)
	}
	return m
}
