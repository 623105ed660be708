package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Kinds
const (
	KindDueSoon      = "due_soon"
	KindOverdue      = "overdue"
	KindCreated      = "created"
	KindTaskAssigned = "task_assigned"
	KindRoleAssigned = "role_assigned"
)

// Entity types
const (
	EntityProject = "project"
	EntityTask    = "task"
)

var (
	// errors
	ErrNotFound = errors.New("notification not found")
)

// Notification is the persisted record delivered to a single recipient.
// Immutable once created except for the read flag; the engine never deletes them.
type Notification struct {
	ID             string    `json:"id"`
	RecipientID    string    `json:"recipient_id"`
	Kind           string    `json:"kind"`
	EntityType     string    `json:"entity_type"`
	EntityID       string    `json:"entity_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	DueDate        time.Time `json:"due_date,omitempty"`
	IsRead         bool      `json:"is_read"`
	IdempotencyKey string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"` // UTC
}

// Payload carries the user-visible content of a notification being dispatched.
type Payload struct {
	Title   string
	Message string
	DueDate time.Time
}

type Repository interface {
	CreateNotification(ctx context.Context, ntf Notification) (Notification, error)
	QueryNotificationsByRecipient(ctx context.Context, userID string) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) (Notification, error)
}

// Service exposes the user-facing read surface over notification records.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) QueryByRecipient(ctx context.Context, userID string) ([]Notification, error) {
	return svc.repo.QueryNotificationsByRecipient(ctx, userID)
}

func (svc *Service) MarkRead(ctx context.Context, id, userID string) (Notification, error) {
	return svc.repo.MarkNotificationRead(ctx, id, userID)
}
