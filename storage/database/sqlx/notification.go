package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/pcphq/pcp/core/notification"
)

type notificationRow struct {
	ID             string    `db:"id"`
	RecipientID    string    `db:"recipient_id"`
	Kind           string    `db:"kind"`
	EntityType     string    `db:"entity_type"`
	EntityID       string    `db:"entity_id"`
	Title          string    `db:"title"`
	Message        string    `db:"message"`
	DueDate        null.Time `db:"due_date"`
	IsRead         bool      `db:"is_read"`
	IdempotencyKey string    `db:"idempotency_key"`
	CreatedAt      time.Time `db:"created_at"`
}

func (row notificationRow) toNotification() notification.Notification {
	return notification.Notification{
		ID:             row.ID,
		RecipientID:    row.RecipientID,
		Kind:           row.Kind,
		EntityType:     row.EntityType,
		EntityID:       row.EntityID,
		Title:          row.Title,
		Message:        row.Message,
		DueDate:        row.DueDate.Time,
		IsRead:         row.IsRead,
		IdempotencyKey: row.IdempotencyKey,
		CreatedAt:      row.CreatedAt,
	}
}

func notificationToRow(ntf notification.Notification) notificationRow {
	return notificationRow{
		ID:             ntf.ID,
		RecipientID:    ntf.RecipientID,
		Kind:           ntf.Kind,
		EntityType:     ntf.EntityType,
		EntityID:       ntf.EntityID,
		Title:          ntf.Title,
		Message:        ntf.Message,
		DueDate:        null.NewTime(ntf.DueDate.UTC(), !ntf.DueDate.IsZero()),
		IsRead:         ntf.IsRead,
		IdempotencyKey: ntf.IdempotencyKey,
		CreatedAt:      ntf.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo notificationRepository) CreateNotification(ctx context.Context, ntf notification.Notification) (notification.Notification, error) {
	ntf.ID = uuid.NewString()
	row := notificationToRow(ntf)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO notification (id, recipient_id, kind, entity_type, entity_id, title, message, due_date, is_read, idempotency_key, created_at)
		VALUES (:id, :recipient_id, :kind, :entity_type, :entity_id, :title, :message, :due_date, :is_read, :idempotency_key, :created_at)`,
		row,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return ntf, nil
}

func (repo notificationRepository) QueryNotificationsByRecipient(ctx context.Context, userID string) ([]notification.Notification, error) {
	var rows []notificationRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM notification WHERE recipient_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	ntfs := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		ntfs = append(ntfs, row.toNotification())
	}
	return ntfs, nil
}

func (repo notificationRepository) MarkNotificationRead(ctx context.Context, id, userID string) (notification.Notification, error) {
	var row notificationRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE notification SET is_read = TRUE
		WHERE id = $1 AND recipient_id = $2
		RETURNING *`,
		id, userID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "marking notification read")
	}
	return row.toNotification(), nil
}

type ledger struct {
	db *sqlx.DB
}

var _ notification.Ledger = (*ledger)(nil) // interface compliance check

func NewLedger(db *sqlx.DB) *ledger {
	return &ledger{db: db}
}

func (l ledger) ShouldSend(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := l.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM notification_ledger WHERE idempotency_key = $1)`, key)
	if err != nil {
		return false, errors.Wrap(err, "checking notification ledger")
	}
	return !exists, nil
}

func (l ledger) MarkSent(ctx context.Context, key string, at time.Time) error {
	// conditional insert; losing a concurrent race is not an error
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO notification_ledger (idempotency_key, sent_at)
		VALUES ($1, $2)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		key, at.UTC(),
	)
	return errors.Wrap(err, "marking notification sent")
}
