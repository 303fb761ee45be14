package manager

import (
	"fmt"

	"tendbot/ledger"
)

// StateInvariantError reports a transition that would corrupt a position:
// a stop moving away from break-even, a size increase, and the like. The
// offending change is never applied; the position's evaluation stops for
// this tick and resumes on the next one.
type StateInvariantError struct {
	PositionID string
	State      ledger.State
	Detail     string
}

func (e *StateInvariantError) Error() string {
	return fmt.Sprintf("state invariant violated for %s (%s): %s", e.PositionID, e.State, e.Detail)
}
