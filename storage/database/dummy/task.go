package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pcphq/pcp/core/task"
)

type taskRepository struct {
	db *taskTable
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db.task}
}

func (repo *taskRepository) query() []task.Task {
	tasks := make([]task.Task, 0, len(repo.db.table))
	for _, t := range repo.db.table {
		tasks = append(tasks, *t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	return tasks
}

func (repo *taskRepository) CreateTask(_ context.Context, tsk task.Task) (task.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	tsk.ID = uuid.NewString()
	repo.db.table[tsk.ID] = &tsk
	return tsk, nil
}

func (repo *taskRepository) GetTaskByID(_ context.Context, id string) (task.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if tsk, ok := repo.db.table[id]; ok {
		return *tsk, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) QueryTasksByProject(_ context.Context, projectID string) ([]task.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var tasks []task.Task
	for _, tsk := range repo.query() {
		if tsk.ProjectID == projectID {
			tasks = append(tasks, tsk)
		}
	}
	return tasks, nil
}

func (repo *taskRepository) QueryTasksDueBy(_ context.Context, cutoff time.Time) ([]task.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var due []task.Task
	for _, tsk := range repo.query() {
		if tsk.IsActive() && tsk.HasDueDate() && !tsk.DueDate.After(cutoff) {
			due = append(due, tsk)
		}
	}
	return due, nil
}

func (repo *taskRepository) UpdateTask(_ context.Context, tsk task.Task) (task.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[tsk.ID]; !ok {
		return task.Task{}, task.ErrNotFound
	}
	repo.db.table[tsk.ID] = &tsk
	return tsk, nil
}

func (repo *taskRepository) DeleteTasksByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
		delete(repo.db.assignees, id)
	}
	return nil
}

func (repo *taskRepository) GetAssignees(_ context.Context, taskID string) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ids := make([]string, len(repo.db.assignees[taskID]))
	copy(ids, repo.db.assignees[taskID])
	return ids, nil
}

func (repo *taskRepository) SetAssignees(_ context.Context, taskID string, userIDs []string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	ids := make([]string, len(userIDs))
	copy(ids, userIDs)
	repo.db.assignees[taskID] = ids
	return nil
}
