package notification

import (
	"fmt"
	"time"
)

// bucketLayout is the time-bucket resolution (hour).
const bucketLayout = "2006010215"

// BuildKey is the single shared idempotency-key builder used by every
// trigger, so the sweep and the on-save paths can never diverge on
// duplicate suppression.
//
// For deadline kinds the bucket time is the entity's due timestamp: every
// trigger that fires for the same (entity, kind, due date) collapses to one
// key no matter when it runs, while editing the due date yields a fresh key
// and a fresh reminder. For event kinds (created, assigned) the bucket time
// is the event time. A due-soon entry never suppresses a later overdue one:
// the kind is part of the key.
func BuildKey(entityType, entityID, kind string, bucket time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", kind, entityType, entityID, bucket.UTC().Format(bucketLayout))
}
