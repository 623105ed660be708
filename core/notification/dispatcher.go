package notification

import (
	"context"
	"fmt"

	"github.com/pcphq/pcp/core"
)

// DispatchResult reports what a dispatch attempt achieved. Recipients are
// attempted independently: one failed recipient never prevents attempts for
// the others, and the failed subset is reported rather than dropped.
type DispatchResult struct {
	Created int
	Failed  []string // recipient IDs whose record could not be created
}

// Dispatcher creates one Notification record per resolved recipient.
// It is the only effectful step of the pipeline.
type Dispatcher struct {
	repo   Repository
	clock  core.Clock
	logger core.Logger
}

func NewDispatcher(repo Repository, clock core.Clock, logger core.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, clock: clock, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, kind, entityType, entityID string, recipients []string, payload Payload, key string) DispatchResult {
	var res DispatchResult
	now := d.clock.Now().UTC()

	for _, recipientID := range recipients {
		ntf := Notification{
			RecipientID:    recipientID,
			Kind:           kind,
			EntityType:     entityType,
			EntityID:       entityID,
			Title:          payload.Title,
			Message:        payload.Message,
			DueDate:        payload.DueDate,
			IdempotencyKey: key,
			CreatedAt:      now,
		}
		if _, err := d.repo.CreateNotification(ctx, ntf); err != nil {
			res.Failed = append(res.Failed, recipientID)
			d.logger.Error(fmt.Sprintf("creating %s notification for %s", kind, recipientID), err)
			continue
		}
		res.Created++
	}
	return res
}
