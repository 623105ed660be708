package notification

import (
	"context"
	"time"
)

// Ledger is the idempotency store that keeps deadline reminders from being
// dispatched twice for the same logical occurrence.
//
// Implementations must make MarkSent a single conditional insert
// (insert-if-absent): two concurrent triggers marking the same key must both
// succeed, with exactly one row recorded. Losing that race is not an error.
//
// Callers bias toward under-suppression: a ledger read failure is treated as
// "not yet sent" and dispatch proceeds. The occasional duplicate reminder is
// tolerated, a silently swallowed one is not.
type Ledger interface {
	// ShouldSend reports whether no record exists for key.
	ShouldSend(ctx context.Context, key string) (bool, error)
	// MarkSent records key; called only after at least one recipient record
	// was successfully created.
	MarkSent(ctx context.Context, key string, at time.Time) error
}
