package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pcphq/pcp/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) CreateNotification(_ context.Context, ntf notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ntf.ID = uuid.NewString()
	repo.db.table[ntf.ID] = &ntf
	return ntf, nil
}

func (repo *notificationRepository) QueryNotificationsByRecipient(_ context.Context, userID string) ([]notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var ntfs []notification.Notification
	for _, ntf := range repo.db.table {
		if ntf.RecipientID == userID {
			ntfs = append(ntfs, *ntf)
		}
	}
	// newest first
	sort.Slice(ntfs, func(i, j int) bool { return ntfs[i].CreatedAt.After(ntfs[j].CreatedAt) })
	return ntfs, nil
}

func (repo *notificationRepository) MarkNotificationRead(_ context.Context, id, userID string) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ntf, ok := repo.db.table[id]
	if !ok || ntf.RecipientID != userID {
		return notification.Notification{}, notification.ErrNotFound
	}
	ntf.IsRead = true
	return *ntf, nil
}

type ledger struct {
	db *notificationTable
}

var _ notification.Ledger = (*ledger)(nil) // interface compliance check

func NewLedger(db *DB) notification.Ledger {
	return &ledger{db: db.notification}
}

func (l *ledger) ShouldSend(_ context.Context, key string) (bool, error) {
	l.db.RLock()
	defer l.db.RUnlock()

	_, sent := l.db.ledger[key]
	return !sent, nil
}

func (l *ledger) MarkSent(_ context.Context, key string, at time.Time) error {
	l.db.Lock()
	defer l.db.Unlock()

	// insert-if-absent; losing the race is not an error
	if _, ok := l.db.ledger[key]; !ok {
		l.db.ledger[key] = at
	}
	return nil
}
