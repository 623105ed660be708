package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pcphq/pcp/core/project"
)

type projectRepository struct {
	db *projectTable
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *DB) project.Repository {
	return &projectRepository{db: db.project}
}

func (repo *projectRepository) query() []project.Project {
	projects := make([]project.Project, 0, len(repo.db.table))
	for _, p := range repo.db.table {
		projects = append(projects, *p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.Before(projects[j].CreatedAt) })
	return projects
}

func (repo *projectRepository) CreateProject(_ context.Context, prj project.Project) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	prj.ID = uuid.NewString()
	repo.db.table[prj.ID] = &prj
	return prj, nil
}

func (repo *projectRepository) GetProjectByID(_ context.Context, id string) (project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if prj, ok := repo.db.table[id]; ok {
		return *prj, nil
	}
	return project.Project{}, project.ErrNotFound
}

func (repo *projectRepository) QueryAllProjects(_ context.Context) ([]project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *projectRepository) QueryProjectsDueBy(_ context.Context, cutoff time.Time) ([]project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var due []project.Project
	for _, prj := range repo.query() {
		if prj.IsActive() && prj.HasDueDate() && !prj.DueDate.After(cutoff) {
			due = append(due, prj)
		}
	}
	return due, nil
}

func (repo *projectRepository) UpdateProject(_ context.Context, prj project.Project) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[prj.ID]; !ok {
		return project.Project{}, project.ErrNotFound
	}
	repo.db.table[prj.ID] = &prj
	return prj, nil
}

func (repo *projectRepository) DeleteProjectsByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
		delete(repo.db.members, id)
	}
	return nil
}

func (repo *projectRepository) GetMembers(_ context.Context, projectID string) ([]project.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	members := make([]project.Member, len(repo.db.members[projectID]))
	copy(members, repo.db.members[projectID])
	return members, nil
}

func (repo *projectRepository) GetMember(_ context.Context, projectID, userID string) (project.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, mem := range repo.db.members[projectID] {
		if mem.UserID == userID {
			return mem, nil
		}
	}
	return project.Member{}, project.ErrMemberNotFound
}

func (repo *projectRepository) AddMember(_ context.Context, mem project.Member) (project.Member, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.members[mem.ProjectID] = append(repo.db.members[mem.ProjectID], mem)
	return mem, nil
}

func (repo *projectRepository) UpdateMemberRole(_ context.Context, projectID, userID, role string) (project.Member, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	members := repo.db.members[projectID]
	for i := range members {
		if members[i].UserID == userID {
			members[i].Role = role
			return members[i], nil
		}
	}
	return project.Member{}, project.ErrMemberNotFound
}

func (repo *projectRepository) RemoveMember(_ context.Context, projectID, userID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	members := repo.db.members[projectID]
	for i := range members {
		if members[i].UserID == userID {
			repo.db.members[projectID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return project.ErrMemberNotFound
}
