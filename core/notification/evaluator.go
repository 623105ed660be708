package notification

import (
	"time"

	"github.com/pkg/errors"
)

// Classification is the deadline lifecycle state of an entity at a given time.
type Classification int

const (
	NoAction Classification = iota
	DueSoon
	Overdue
)

func (c Classification) String() string {
	switch c {
	case DueSoon:
		return "due-soon"
	case Overdue:
		return "overdue"
	}
	return "no-action"
}

// Kind maps a Classification to its notification kind.
func (c Classification) Kind() (string, bool) {
	switch c {
	case DueSoon:
		return KindDueSoon, true
	case Overdue:
		return KindOverdue, true
	}
	return "", false
}

// ErrInvalidEntity is returned when the caller expects a due timestamp
// and the entity has none.
var ErrInvalidEntity = errors.New("entity has no due date")

// Evaluate classifies an entity's deadline state. Pure: it never touches the
// ledger or dispatcher.
//
// The due time itself is overdue (inclusive lower bound): an entity exactly at
// its due time has arrived, it is not merely "due soon".
func Evaluate(due, now time.Time, window time.Duration) (Classification, error) {
	if due.IsZero() {
		return NoAction, ErrInvalidEntity
	}
	delta := due.Sub(now)
	switch {
	case delta <= 0:
		return Overdue, nil
	case delta <= window:
		return DueSoon, nil
	}
	return NoAction, nil
}
