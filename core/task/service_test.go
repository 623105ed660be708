package task_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/pcphq/pcp/core"
	"github.com/pcphq/pcp/core/project"
	"github.com/pcphq/pcp/core/task"
	dummydb "github.com/pcphq/pcp/storage/database/dummy"
	testutil "github.com/pcphq/pcp/tests"
)

var ctx = context.Background()

type recordingNotifier struct {
	mu       sync.Mutex
	saved    [][2]bool // (created, dueChanged) per TaskSaved call
	assigned [][]string
}

func (n *recordingNotifier) TaskSaved(_ context.Context, _ task.Task, created, dueChanged bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.saved = append(n.saved, [2]bool{created, dueChanged})
}

func (n *recordingNotifier) TaskAssigned(_ context.Context, _ task.Task, assigneeIDs []string, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assigned = append(n.assigned, assigneeIDs)
}

type env struct {
	svc     *task.Service
	repo    task.Repository
	prjRepo project.Repository
	ntf     *recordingNotifier
	prj     project.Project
}

func setup(t *testing.T) *env {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	prjRepo := dummydb.NewProjectRepository(db)
	prjSvc := project.NewService(prjRepo, nil, testutil.Logger{})

	prj := testutil.CreateProject(t, prjRepo, "Thesis", "sup", time.Time{})
	testutil.AddMember(t, prjRepo, prj.ID, "sup", project.RoleSupervisor)
	testutil.AddMember(t, prjRepo, prj.ID, "lead", project.RoleGroupLeader)
	testutil.AddMember(t, prjRepo, prj.ID, "stud", project.RoleStudent)

	ntf := &recordingNotifier{}
	repo := dummydb.NewTaskRepository(db)
	return &env{
		svc:     task.NewService(repo, prjSvc, ntf, testutil.Logger{}),
		repo:    repo,
		prjRepo: prjRepo,
		ntf:     ntf,
		prj:     prj,
	}
}

func TestServiceCreate(t *testing.T) {
	t.Run("with assignees", func(t *testing.T) {
		env := setup(t)

		tsk, err := env.svc.Create(ctx, task.NewTask{
			ProjectID:   env.prj.ID,
			Title:       "Chapter 1",
			AssigneeIDs: []string{"stud"},
		}, "sup")
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if tsk.Status != task.StatusPending {
			t.Errorf("Status = %q, want %q", tsk.Status, task.StatusPending)
		}
		if tsk.CreatorID != "sup" {
			t.Errorf("CreatorID = %q, want %q", tsk.CreatorID, "sup")
		}

		assignees, _ := env.repo.GetAssignees(ctx, tsk.ID)
		if len(assignees) != 1 || assignees[0] != "stud" {
			t.Errorf("assignees = %v, want [stud]", assignees)
		}
		if len(env.ntf.saved) != 1 || env.ntf.saved[0] != [2]bool{true, false} {
			t.Errorf("TaskSaved calls = %v, want [(created, no due change)]", env.ntf.saved)
		}
		if len(env.ntf.assigned) != 1 {
			t.Errorf("TaskAssigned calls = %v, want 1", env.ntf.assigned)
		}
	})

	t.Run("assignee not a member", func(t *testing.T) {
		env := setup(t)

		_, err := env.svc.Create(ctx, task.NewTask{
			ProjectID:   env.prj.ID,
			Title:       "Chapter 1",
			AssigneeIDs: []string{"stranger"},
		}, "sup")
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("Create() err = %v, want *core.ValidationError", err)
		}
	})

	t.Run("with due date", func(t *testing.T) {
		env := setup(t)

		due := time.Now().UTC().Add(5 * time.Hour)
		_, err := env.svc.Create(ctx, task.NewTask{ProjectID: env.prj.ID, Title: "Chapter 1", DueDate: due}, "sup")
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if len(env.ntf.saved) != 1 || env.ntf.saved[0] != [2]bool{true, true} {
			t.Errorf("TaskSaved calls = %v, want [(created, due changed)]", env.ntf.saved)
		}
	})
}

func TestServiceUpdateStatus(t *testing.T) {
	env := setup(t)

	tsk, err := env.svc.Create(ctx, task.NewTask{ProjectID: env.prj.ID, Title: "Chapter 1"}, "sup")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	tests := []struct {
		name    string
		status  string
		wantErr error
	}{
		{name: "forward to in_progress", status: task.StatusInProgress},
		{name: "backwards to pending", status: task.StatusPending, wantErr: task.ErrInvalidStatusChange},
		{name: "skip ahead to finalized", status: task.StatusFinalized},
		{name: "backwards from finalized", status: task.StatusCompleted, wantErr: task.ErrInvalidStatusChange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, err := env.svc.Update(ctx, tsk.ID, task.UpdateTask{Status: tt.status})
			if err != tt.wantErr {
				t.Fatalf("Update() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && updated.Status != tt.status {
				t.Errorf("Status = %q, want %q", updated.Status, tt.status)
			}
		})
	}
}

func TestServiceUpdateDueChanged(t *testing.T) {
	env := setup(t)

	due := time.Now().UTC().Add(5 * time.Hour).Truncate(time.Second)
	tsk, err := env.svc.Create(ctx, task.NewTask{ProjectID: env.prj.ID, Title: "Chapter 1", DueDate: due}, "sup")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	env.ntf.saved = nil

	if _, err = env.svc.Update(ctx, tsk.ID, task.UpdateTask{DueDate: &due}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	moved := due.Add(24 * time.Hour)
	if _, err = env.svc.Update(ctx, tsk.ID, task.UpdateTask{DueDate: &moved}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	want := [][2]bool{{false, false}, {false, true}}
	if len(env.ntf.saved) != 2 || env.ntf.saved[0] != want[0] || env.ntf.saved[1] != want[1] {
		t.Errorf("TaskSaved calls = %v, want %v", env.ntf.saved, want)
	}
}

func TestServiceAssign(t *testing.T) {
	env := setup(t)

	tsk, err := env.svc.Create(ctx, task.NewTask{
		ProjectID:   env.prj.ID,
		Title:       "Chapter 1",
		AssigneeIDs: []string{"stud"},
	}, "sup")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	env.ntf.assigned = nil

	t.Run("only newly added are notified", func(t *testing.T) {
		if _, err := env.svc.Assign(ctx, tsk.ID, []string{"stud", "lead"}, "sup"); err != nil {
			t.Fatalf("Assign() failed: %v", err)
		}
		if len(env.ntf.assigned) != 1 || len(env.ntf.assigned[0]) != 1 || env.ntf.assigned[0][0] != "lead" {
			t.Errorf("TaskAssigned calls = %v, want [[lead]]", env.ntf.assigned)
		}
	})

	t.Run("non-member rejected", func(t *testing.T) {
		_, err := env.svc.Assign(ctx, tsk.ID, []string{"stranger"}, "sup")
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("Assign() err = %v, want *core.ValidationError", err)
		}
	})

	t.Run("no additions no notification", func(t *testing.T) {
		env.ntf.assigned = nil
		if _, err := env.svc.Assign(ctx, tsk.ID, []string{"stud"}, "sup"); err != nil {
			t.Fatalf("Assign() failed: %v", err)
		}
		if len(env.ntf.assigned) != 0 {
			t.Errorf("TaskAssigned calls = %v, want none", env.ntf.assigned)
		}
	})
}

func TestStatusChangeAllowed(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{task.StatusPending, task.StatusInProgress, true},
		{task.StatusPending, task.StatusFinalized, true},
		{task.StatusInProgress, task.StatusCompleted, true},
		{task.StatusCompleted, task.StatusFinalized, true},
		{task.StatusInProgress, task.StatusPending, false},
		{task.StatusFinalized, task.StatusCompleted, false},
		{task.StatusPending, task.StatusPending, false},
		{"bogus", task.StatusPending, false},
		{task.StatusPending, "bogus", false},
	}
	for _, tt := range tests {
		t.Run(tt.from+" to "+tt.to, func(t *testing.T) {
			if got := task.StatusChangeAllowed(tt.from, tt.to); got != tt.want {
				t.Errorf("StatusChangeAllowed(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
