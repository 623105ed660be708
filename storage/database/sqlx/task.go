package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/pcphq/pcp/core/task"
)

type taskRow struct {
	ID          string    `db:"id"`
	ProjectID   string    `db:"project_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Status      string    `db:"status"`
	CreatorID   string    `db:"creator_id"`
	DueDate     null.Time `db:"due_date"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row taskRow) toTask() task.Task {
	return task.Task{
		ID:          row.ID,
		ProjectID:   row.ProjectID,
		Title:       row.Title,
		Description: row.Description,
		Status:      row.Status,
		CreatorID:   row.CreatorID,
		DueDate:     row.DueDate.Time,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func taskToRow(tsk task.Task) taskRow {
	return taskRow{
		ID:          tsk.ID,
		ProjectID:   tsk.ProjectID,
		Title:       tsk.Title,
		Description: tsk.Description,
		Status:      tsk.Status,
		CreatorID:   tsk.CreatorID,
		DueDate:     null.NewTime(tsk.DueDate.UTC(), tsk.HasDueDate()),
		CreatedAt:   tsk.CreatedAt.UTC(),
		UpdatedAt:   tsk.UpdatedAt.UTC(),
	}
}

type taskRepository struct {
	db *sqlx.DB
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *sqlx.DB) *taskRepository {
	return &taskRepository{db: db}
}

func (repo taskRepository) CreateTask(ctx context.Context, tsk task.Task) (task.Task, error) {
	tsk.ID = uuid.NewString()
	row := taskToRow(tsk)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO task (id, project_id, title, description, status, creator_id, due_date, created_at, updated_at)
		VALUES (:id, :project_id, :title, :description, :status, :creator_id, :due_date, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return tsk, nil
}

func (repo taskRepository) GetTaskByID(ctx context.Context, id string) (task.Task, error) {
	var row taskRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM task WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, errors.Wrap(err, "getting task")
	}
	return row.toTask(), nil
}

func (repo taskRepository) QueryTasksByProject(ctx context.Context, projectID string) ([]task.Task, error) {
	var rows []taskRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM task WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toTask())
	}
	return tasks, nil
}

func (repo taskRepository) QueryTasksDueBy(ctx context.Context, cutoff time.Time) ([]task.Task, error) {
	var rows []taskRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM task
		WHERE due_date IS NOT NULL AND due_date <= $1 AND status IN ($2, $3)
		ORDER BY due_date`,
		cutoff.UTC(), task.StatusPending, task.StatusInProgress,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying due tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toTask())
	}
	return tasks, nil
}

func (repo taskRepository) UpdateTask(ctx context.Context, tsk task.Task) (task.Task, error) {
	row := taskToRow(tsk)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE task
		SET title = :title, description = :description, status = :status, due_date = :due_date, updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "updating task")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return task.Task{}, task.ErrNotFound
	}
	return tsk, nil
}

func (repo taskRepository) DeleteTasksByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM task WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting tasks")
	}
	return nil
}

func (repo taskRepository) GetAssignees(ctx context.Context, taskID string) ([]string, error) {
	var ids []string
	err := repo.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM task_assignee WHERE task_id = $1`, taskID)
	if err != nil {
		return nil, errors.Wrap(err, "querying task assignees")
	}
	return ids, nil
}

// SetAssignees replaces the assignee set atomically.
func (repo taskRepository) SetAssignees(ctx context.Context, taskID string, userIDs []string) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM task_assignee WHERE task_id = $1`, taskID); err != nil {
		return errors.Wrap(err, "clearing task assignees")
	}
	for _, uid := range userIDs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO task_assignee (task_id, user_id) VALUES ($1, $2)`, taskID, uid); err != nil {
			return errors.Wrap(err, "inserting task assignee")
		}
	}
	return errors.Wrap(tx.Commit(), "committing assignees")
}
