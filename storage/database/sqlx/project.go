package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/pcphq/pcp/core/project"
)

type projectRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Status      string    `db:"status"`
	OwnerID     string    `db:"owner_id"`
	DueDate     null.Time `db:"due_date"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row projectRow) toProject() project.Project {
	return project.Project{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Status:      row.Status,
		OwnerID:     row.OwnerID,
		DueDate:     row.DueDate.Time,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func projectToRow(prj project.Project) projectRow {
	return projectRow{
		ID:          prj.ID,
		Name:        prj.Name,
		Description: prj.Description,
		Status:      prj.Status,
		OwnerID:     prj.OwnerID,
		DueDate:     null.NewTime(prj.DueDate.UTC(), prj.HasDueDate()),
		CreatedAt:   prj.CreatedAt.UTC(),
		UpdatedAt:   prj.UpdatedAt.UTC(),
	}
}

type memberRow struct {
	ProjectID string    `db:"project_id"`
	UserID    string    `db:"user_id"`
	Role      string    `db:"role"`
	JoinedAt  time.Time `db:"joined_at"`
}

func (row memberRow) toMember() project.Member {
	return project.Member(row)
}

type projectRepository struct {
	db *sqlx.DB
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *sqlx.DB) *projectRepository {
	return &projectRepository{db: db}
}

func (repo projectRepository) CreateProject(ctx context.Context, prj project.Project) (project.Project, error) {
	prj.ID = uuid.NewString()
	row := projectToRow(prj)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO project (id, name, description, status, owner_id, due_date, created_at, updated_at)
		VALUES (:id, :name, :description, :status, :owner_id, :due_date, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return project.Project{}, errors.Wrap(err, "inserting project")
	}
	return prj, nil
}

func (repo projectRepository) GetProjectByID(ctx context.Context, id string) (project.Project, error) {
	var row projectRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM project WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return project.Project{}, project.ErrNotFound
		}
		return project.Project{}, errors.Wrap(err, "getting project")
	}
	return row.toProject(), nil
}

func (repo projectRepository) QueryAllProjects(ctx context.Context) ([]project.Project, error) {
	var rows []projectRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM project ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying projects")
	}
	projects := make([]project.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, row.toProject())
	}
	return projects, nil
}

func (repo projectRepository) QueryProjectsDueBy(ctx context.Context, cutoff time.Time) ([]project.Project, error) {
	var rows []projectRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM project
		WHERE due_date IS NOT NULL AND due_date <= $1 AND status <> $2
		ORDER BY due_date`,
		cutoff.UTC(), project.StatusCompleted,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying due projects")
	}
	projects := make([]project.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, row.toProject())
	}
	return projects, nil
}

func (repo projectRepository) UpdateProject(ctx context.Context, prj project.Project) (project.Project, error) {
	row := projectToRow(prj)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE project
		SET name = :name, description = :description, status = :status, due_date = :due_date, updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return project.Project{}, errors.Wrap(err, "updating project")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.Project{}, project.ErrNotFound
	}
	return prj, nil
}

func (repo projectRepository) DeleteProjectsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM project WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting projects")
	}
	return nil
}

func (repo projectRepository) GetMembers(ctx context.Context, projectID string) ([]project.Member, error) {
	var rows []memberRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM project_member WHERE project_id = $1 ORDER BY joined_at`, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "querying project members")
	}
	members := make([]project.Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.toMember())
	}
	return members, nil
}

func (repo projectRepository) GetMember(ctx context.Context, projectID, userID string) (project.Member, error) {
	var row memberRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM project_member WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return project.Member{}, project.ErrMemberNotFound
		}
		return project.Member{}, errors.Wrap(err, "getting project member")
	}
	return row.toMember(), nil
}

func (repo projectRepository) AddMember(ctx context.Context, mem project.Member) (project.Member, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO project_member (project_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)`,
		mem.ProjectID, mem.UserID, mem.Role, mem.JoinedAt.UTC(),
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return project.Member{}, project.ErrMemberExists
		}
		return project.Member{}, errors.Wrap(err, "inserting project member")
	}
	return mem, nil
}

func (repo projectRepository) UpdateMemberRole(ctx context.Context, projectID, userID, role string) (project.Member, error) {
	var row memberRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE project_member SET role = $3
		WHERE project_id = $1 AND user_id = $2
		RETURNING *`,
		projectID, userID, role,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return project.Member{}, project.ErrMemberNotFound
		}
		return project.Member{}, errors.Wrap(err, "updating member role")
	}
	return row.toMember(), nil
}

func (repo projectRepository) RemoveMember(ctx context.Context, projectID, userID string) error {
	res, err := repo.db.ExecContext(ctx,
		`DELETE FROM project_member WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return errors.Wrap(err, "removing project member")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.ErrMemberNotFound
	}
	return nil
}
