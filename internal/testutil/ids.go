package testutil

// DefaultRunID is used when a scenario does not pin its own run ID.
const DefaultRunID = "test-run-default"

// FixedRunID hands out the same run ID every time, so repeated runs of a
// scenario write byte-identical journals and golden traces.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a generator for id, or DefaultRunID if id is empty.
func NewFixedRunID(id string) FixedRunID {
	if id == "" {
		id = DefaultRunID
	}
	return FixedRunID{id: id}
}

// Generate returns the fixed ID. Satisfies journal.RunIDGenerator.
func (g FixedRunID) Generate() string {
	return g.id
}
