// Package resultq implements a deterministic result queue for scripting a
// mocked data-access layer in tests.
//
// A test pre-loads outcomes with QueueSuccess and QueueFailure; each Query
// consumes the oldest one. Successes can be negotiated into three shapes:
//
//	q := resultq.New(resultq.Config{Name: "users"})
//	q.QueueSuccess(user, resultq.WasCreated(false))
//	p, err := q.Query(resultq.IncludeCreated())
//	res, err := p.Await(ctx) // res.Value == user, res.Created == false
//
// When a queue is empty, Query delegates to Config.Parent (unless
// propagation is stopped), then falls back to a fallback producer, and
// otherwise returns an EmptyQueryQueue error.
//
// # Error Channels
//
// Scripted failures reject the returned Pending. Structural problems
// (EmptyQueryQueue, InvalidQueryResult) are returned directly from Query
// because they indicate missing test setup or a programming error.
package resultq
