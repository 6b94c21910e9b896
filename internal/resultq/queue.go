package resultq

import (
	"io"
	"log/slog"
	"sync"
)

// Source identifies where a consume decision found its result.
type Source string

const (
	// SourceLocal means the queue popped one of its own outcomes.
	SourceLocal Source = "local"
	// SourceParent means the query was forwarded to the parent queue.
	SourceParent Source = "parent"
	// SourceFallback means a fallback producer supplied the result.
	SourceFallback Source = "fallback"
	// SourceNone means no result was available.
	SourceNone Source = "none"
)

// Event describes one consume decision. It is delivered to Config.Observer
// after the decision is made and before Query returns.
type Event struct {
	Queue  string
	Source Source

	// Kind and Shape are set for SourceLocal decisions on valid entries.
	Kind  Kind
	Shape Shape

	// Content is the popped outcome content for SourceLocal decisions.
	Content any

	// Err is the structural error returned to the caller, if any.
	Err error
}

// Config configures a Queue.
type Config struct {
	// Name labels the queue in logs, errors and events.
	Name string

	// Parent receives delegated queries once this queue is exhausted.
	// The parent is not owned and never learns about its children.
	Parent *Queue

	// StopPropagation disables delegation to Parent for every query.
	StopPropagation bool

	// CreatedDefault is reported as the created flag when an outcome does
	// not set one. Nil means true.
	CreatedDefault *bool

	// Fallback produces a result when nothing is queued and the query is
	// not delegated.
	Fallback FallbackFunc

	// Logger receives debug records for every decision.
	// Defaults to a discarding logger.
	Logger *slog.Logger

	// Observer, when set, is called once per consume decision.
	Observer func(Event)
}

// Queue is a scripted result queue for a mocked data-access layer.
//
// Outcomes are consumed in insertion order. The pop-and-decide step runs
// under a mutex; the lock is released before delegating to the parent or
// calling a fallback, so a chain never holds two locks at once.
type Queue struct {
	mu      sync.Mutex
	pending []Outcome
	cfg     Config
	logger  *slog.Logger
}

// New creates an empty queue.
func New(cfg Config) *Queue {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Name != "" {
		logger = logger.With("queue", cfg.Name)
	}
	return &Queue{
		pending: make([]Outcome, 0, 8),
		cfg:     cfg,
		logger:  logger,
	}
}

// Name returns the configured queue name.
func (q *Queue) Name() string {
	return q.cfg.Name
}

// Parent returns the delegation target, or nil.
func (q *Queue) Parent() *Queue {
	return q.cfg.Parent
}

// Len returns the number of locally queued outcomes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// QueueSuccess appends a successful outcome and returns q for chaining.
func (q *Queue) QueueSuccess(content any, opts ...OutcomeOption) *Queue {
	q.push(Success{Content: content, Meta: buildMeta(opts)})
	q.logger.Debug("queued success", "pending", q.Len())
	return q
}

// QueueFailure appends a failing outcome and returns q for chaining.
//
// Unless ConvertNonErrors(false) is given, content that is not an error
// is wrapped in a BaseError so every rejection is error-typed.
func (q *Queue) QueueFailure(content any, opts ...OutcomeOption) *Queue {
	meta := buildMeta(opts)
	convert := meta.ConvertNonErrors == nil || *meta.ConvertNonErrors
	if convert && !isErrorLike(content) {
		content = NewBaseError(content)
	}
	q.push(Failure{Content: content, Meta: meta})
	q.logger.Debug("queued failure", "pending", q.Len())
	return q
}

// QueueError is an alias for QueueFailure.
func (q *Queue) QueueError(content any, opts ...OutcomeOption) *Queue {
	return q.QueueFailure(content, opts...)
}

func (q *Queue) push(o Outcome) {
	q.mu.Lock()
	q.pending = append(q.pending, o)
	q.mu.Unlock()
}

// ClearOptions controls ClearQueue.
type ClearOptions struct {
	// Propagate clears every ancestor queue as well.
	Propagate bool
}

// ClearOption sets a ClearOptions field.
type ClearOption func(*ClearOptions)

// PropagateClear makes ClearQueue cascade up the parent chain.
func PropagateClear() ClearOption {
	return func(o *ClearOptions) { o.Propagate = true }
}

// ClearQueue drops every locally queued outcome and returns q.
func (q *Queue) ClearQueue(opts ...ClearOption) *Queue {
	var co ClearOptions
	for _, opt := range opts {
		opt(&co)
	}
	return q.clear(co)
}

func (q *Queue) clear(co ClearOptions) *Queue {
	q.mu.Lock()
	dropped := len(q.pending)
	clear(q.pending)
	q.pending = q.pending[:0]
	q.mu.Unlock()

	q.logger.Debug("queue cleared", "dropped", dropped, "propagate", co.Propagate)

	if co.Propagate && q.cfg.Parent != nil {
		q.cfg.Parent.clear(co)
	}
	return q
}

// QueryOptions controls a single Query call.
type QueryOptions struct {
	// Fallback overrides Config.Fallback for this call.
	Fallback FallbackFunc

	// IncludeCreated resolves successes as (value, created).
	IncludeCreated bool

	// IncludeAffectedRows resolves successes as (value, rows).
	// Ignored when IncludeCreated is set.
	IncludeAffectedRows bool

	// StopPropagation disables delegation to the parent for this call.
	StopPropagation bool
}

// QueryOption sets a QueryOptions field.
type QueryOption func(*QueryOptions)

// WithFallback sets a call-local fallback producer.
func WithFallback(fn FallbackFunc) QueryOption {
	return func(o *QueryOptions) { o.Fallback = fn }
}

// IncludeCreated requests the (value, created) shape.
func IncludeCreated() QueryOption {
	return func(o *QueryOptions) { o.IncludeCreated = true }
}

// IncludeAffectedRows requests the (value, affectedRows) shape.
func IncludeAffectedRows() QueryOption {
	return func(o *QueryOptions) { o.IncludeAffectedRows = true }
}

// StopPropagation suppresses delegation to the parent for this call.
func StopPropagation() QueryOption {
	return func(o *QueryOptions) { o.StopPropagation = true }
}

// Query consumes the oldest queued outcome.
//
// Failures settle the returned handle into its rejected state. The error
// return is reserved for structural problems: InvalidQueryResult for a
// corrupted entry and EmptyQueryQueue when nothing in the chain, and no
// fallback, can produce a result.
func (q *Queue) Query(opts ...QueryOption) (*Pending, error) {
	var qo QueryOptions
	for _, opt := range opts {
		opt(&qo)
	}
	return q.QueryWith(qo)
}

// QueryWith is Query with an explicit options struct.
func (q *Queue) QueryWith(qo QueryOptions) (*Pending, error) {
	q.mu.Lock()
	if len(q.pending) > 0 {
		entry := q.pending[0]
		q.pending[0] = nil
		if len(q.pending) == 1 {
			q.pending = q.pending[:0]
		} else {
			q.pending = q.pending[1:]
		}
		q.mu.Unlock()
		return q.consume(entry, qo)
	}
	q.mu.Unlock()

	if !qo.StopPropagation && !q.cfg.StopPropagation && q.cfg.Parent != nil {
		q.logger.Debug("delegating query to parent", "parent", q.cfg.Parent.Name())
		q.notify(Event{Queue: q.cfg.Name, Source: SourceParent})
		return q.cfg.Parent.QueryWith(qo)
	}

	fallback := qo.Fallback
	if fallback == nil {
		fallback = q.cfg.Fallback
	}
	if fallback != nil {
		q.logger.Debug("queue exhausted, using fallback")
		q.notify(Event{Queue: q.cfg.Name, Source: SourceFallback})
		return fallback(), nil
	}

	err := newEmptyQueryQueueError(q.cfg.Name)
	q.logger.Debug("queue exhausted, no fallback")
	q.notify(Event{Queue: q.cfg.Name, Source: SourceNone, Err: err})
	return nil, err
}

func (q *Queue) consume(entry Outcome, qo QueryOptions) (*Pending, error) {
	switch o := entry.(type) {
	case Failure:
		q.logger.Debug("consumed failure", "pending", q.Len())
		q.notify(Event{Queue: q.cfg.Name, Source: SourceLocal, Kind: KindFailure, Content: o.Content})
		return Rejected(o.Content), nil
	case Success:
		r := q.negotiate(o, qo)
		q.logger.Debug("consumed success", "shape", r.Shape.String(), "pending", q.Len())
		q.notify(Event{Queue: q.cfg.Name, Source: SourceLocal, Kind: KindSuccess, Shape: r.Shape, Content: o.Content})
		return Resolved(r), nil
	default:
		err := newInvalidQueryResultError(q.cfg.Name, entry)
		q.logger.Error("invalid queued entry", "error", err)
		q.notify(Event{Queue: q.cfg.Name, Source: SourceLocal, Err: err})
		return nil, err
	}
}

// negotiate picks the result shape for a successful outcome.
func (q *Queue) negotiate(s Success, qo QueryOptions) Result {
	switch {
	case qo.IncludeCreated:
		created := true
		if q.cfg.CreatedDefault != nil {
			created = *q.cfg.CreatedDefault
		}
		if s.Meta.WasCreated != nil {
			created = *s.Meta.WasCreated
		}
		return Result{Shape: ShapeCreated, Value: s.Content, Created: created}
	case qo.IncludeAffectedRows:
		rows := s.Meta.AffectedRows
		if rows == nil {
			rows = []any{}
		}
		return Result{Shape: ShapeAffectedRows, Value: s.Content, AffectedRows: rows}
	default:
		return Result{Shape: ShapeValue, Value: s.Content}
	}
}

func (q *Queue) notify(e Event) {
	if q.cfg.Observer != nil {
		q.cfg.Observer(e)
	}
}
