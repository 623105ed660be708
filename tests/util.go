package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/pcphq/pcp/core/project"
	"github.com/pcphq/pcp/core/task"
	"github.com/pcphq/pcp/core/user"
)

// Logger discards everything; the tests that care about log output assert on
// behavior, not on log lines.
type Logger struct{}

func (Logger) Debug(msg string, args ...interface{}) {}
func (Logger) Info(msg string, args ...interface{})  {}
func (Logger) Warn(msg string, args ...interface{})  {}
func (Logger) Error(msg string, args ...interface{}) {}
func (Logger) Fatal(msg string, args ...interface{}) {}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	isActive bool,
) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateProject(
	t *testing.T,
	repo project.Repository,
	name, ownerID string,
	dueDate time.Time,
) project.Project {
	t.Helper()

	now := time.Now().UTC()
	prj := project.Project{
		Name:      name,
		Status:    project.StatusInProgress,
		OwnerID:   ownerID,
		DueDate:   dueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	prj, err := repo.CreateProject(context.Background(), prj)
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	return prj
}

func AddMember(t *testing.T, repo project.Repository, projectID, userID, role string) project.Member {
	t.Helper()

	mem, err := repo.AddMember(context.Background(), project.Member{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AddMember() failed: %v", err)
	}
	return mem
}

func CreateTask(
	t *testing.T,
	repo task.Repository,
	projectID, title, creatorID string,
	dueDate time.Time,
) task.Task {
	t.Helper()

	now := time.Now().UTC()
	tsk := task.Task{
		ProjectID: projectID,
		Title:     title,
		Status:    task.StatusPending,
		CreatorID: creatorID,
		DueDate:   dueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tsk, err := repo.CreateTask(context.Background(), tsk)
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	return tsk
}
