package dummydb

import (
	"sync"
	"time"

	"github.com/pcphq/pcp/core/notification"
	"github.com/pcphq/pcp/core/project"
	"github.com/pcphq/pcp/core/task"
	"github.com/pcphq/pcp/core/user"
)

type (
	DB struct {
		user         *userTable
		project      *projectTable
		task         *taskTable
		notification *notificationTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	projectTable struct {
		sync.RWMutex
		table   map[string]*project.Project
		members map[string][]project.Member // by project ID
	}

	taskTable struct {
		sync.RWMutex
		table     map[string]*task.Task
		assignees map[string][]string // user IDs by task ID
	}

	notificationTable struct {
		sync.RWMutex
		table  map[string]*notification.Notification
		ledger map[string]time.Time // sent-at by idempotency key
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		project: &projectTable{table: make(map[string]*project.Project), members: make(map[string][]project.Member)},
		task:    &taskTable{table: make(map[string]*task.Task), assignees: make(map[string][]string)},
		notification: &notificationTable{
			table:  make(map[string]*notification.Notification),
			ledger: make(map[string]time.Time),
		},
	}
	return db, nil
}
