package project_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pcphq/pcp/core/project"
	dummydb "github.com/pcphq/pcp/storage/database/dummy"
	testutil "github.com/pcphq/pcp/tests"
)

var ctx = context.Background()

// recordingNotifier captures trigger calls for assertions.
type recordingNotifier struct {
	mu    sync.Mutex
	saved []bool // dueChanged per ProjectSaved call
	roles []project.Member
}

func (n *recordingNotifier) ProjectSaved(_ context.Context, _ project.Project, dueChanged bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.saved = append(n.saved, dueChanged)
}

func (n *recordingNotifier) RoleAssigned(_ context.Context, _ project.Project, mem project.Member, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.roles = append(n.roles, mem)
}

func setupService(t *testing.T) (*project.Service, project.Repository, *recordingNotifier) {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewProjectRepository(db)
	ntf := &recordingNotifier{}
	return project.NewService(repo, ntf, testutil.Logger{}), repo, ntf
}

func TestServiceCreate(t *testing.T) {
	svc, repo, ntf := setupService(t)

	prj, err := svc.Create(ctx, project.NewProject{Name: "Thesis", DueDate: time.Now().Add(72 * time.Hour)}, "owner")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if prj.Status != project.StatusPlanning {
		t.Errorf("Status = %q, want %q", prj.Status, project.StatusPlanning)
	}

	members, err := repo.GetMembers(ctx, prj.ID)
	if err != nil {
		t.Fatalf("GetMembers() failed: %v", err)
	}
	if len(members) != 1 || members[0].UserID != "owner" || members[0].Role != project.RoleSupervisor {
		t.Errorf("members = %+v, want single supervisor owner", members)
	}

	if len(ntf.saved) != 1 || !ntf.saved[0] {
		t.Errorf("ProjectSaved calls = %v, want [true]", ntf.saved)
	}
}

func TestServiceUpdateDueChanged(t *testing.T) {
	svc, _, ntf := setupService(t)

	due := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)
	prj, err := svc.Create(ctx, project.NewProject{Name: "Thesis", DueDate: due}, "owner")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	ntf.saved = nil

	// same due date: not a change
	if _, err = svc.Update(ctx, prj.ID, project.UpdateProject{Name: "Thesis v2", DueDate: &due}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if len(ntf.saved) != 1 || ntf.saved[0] {
		t.Fatalf("ProjectSaved calls = %v, want [false]", ntf.saved)
	}

	moved := due.Add(24 * time.Hour)
	if _, err = svc.Update(ctx, prj.ID, project.UpdateProject{DueDate: &moved}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if len(ntf.saved) != 2 || !ntf.saved[1] {
		t.Errorf("ProjectSaved calls = %v, want [false true]", ntf.saved)
	}
}

func TestServiceAddMember(t *testing.T) {
	svc, _, ntf := setupService(t)

	prj, err := svc.Create(ctx, project.NewProject{Name: "Thesis"}, "owner")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	mem, err := svc.AddMember(ctx, prj.ID, project.NewMember{UserID: "lead", Role: project.RoleGroupLeader}, "owner")
	if err != nil {
		t.Fatalf("AddMember() failed: %v", err)
	}
	if mem.Role != project.RoleGroupLeader {
		t.Errorf("Role = %q, want %q", mem.Role, project.RoleGroupLeader)
	}
	if len(ntf.roles) != 1 || ntf.roles[0].UserID != "lead" {
		t.Errorf("RoleAssigned calls = %+v, want one for lead", ntf.roles)
	}

	// same user again
	if _, err = svc.AddMember(ctx, prj.ID, project.NewMember{UserID: "lead", Role: project.RoleStudent}, "owner"); err != project.ErrMemberExists {
		t.Errorf("AddMember() err = %v, want %v", err, project.ErrMemberExists)
	}
}

func TestServiceRemoveMember(t *testing.T) {
	svc, repo, _ := setupService(t)

	prj, err := svc.Create(ctx, project.NewProject{Name: "Thesis"}, "owner")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	testutil.AddMember(t, repo, prj.ID, "lead", project.RoleGroupLeader)
	testutil.AddMember(t, repo, prj.ID, "stud", project.RoleStudent)

	t.Run("unknown member", func(t *testing.T) {
		if err := svc.RemoveMember(ctx, prj.ID, "nobody"); err != project.ErrMemberNotFound {
			t.Errorf("RemoveMember() err = %v, want %v", err, project.ErrMemberNotFound)
		}
	})

	t.Run("last supervisor is rejected and state unchanged", func(t *testing.T) {
		err := svc.RemoveMember(ctx, prj.ID, "owner")
		var ive *project.InvariantViolationError
		if !errors.As(err, &ive) {
			t.Fatalf("RemoveMember() err = %v, want *InvariantViolationError", err)
		}
		members, _ := repo.GetMembers(ctx, prj.ID)
		if len(members) != 3 {
			t.Errorf("members = %d, want 3 (rejection must have no side effect)", len(members))
		}
	})

	t.Run("student removal is allowed", func(t *testing.T) {
		if err := svc.RemoveMember(ctx, prj.ID, "stud"); err != nil {
			t.Errorf("RemoveMember() failed: %v", err)
		}
	})
}

// Two concurrent removals of the two supervisors: exactly one may win,
// the serialized guard must reject the other.
func TestServiceConcurrentSupervisorRemoval(t *testing.T) {
	svc, repo, _ := setupService(t)

	prj, err := svc.Create(ctx, project.NewProject{Name: "Thesis"}, "sup1")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	testutil.AddMember(t, repo, prj.ID, "sup2", project.RoleSupervisor)
	testutil.AddMember(t, repo, prj.ID, "lead", project.RoleGroupLeader)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, uid := range []string{"sup1", "sup2"} {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			errs <- svc.RemoveMember(ctx, prj.ID, uid)
		}(uid)
	}
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		var ive *project.InvariantViolationError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &ive):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 1 {
		t.Errorf("got %d successes and %d rejections, want 1 and 1", ok, rejected)
	}

	members, _ := repo.GetMembers(ctx, prj.ID)
	var sups int
	for _, m := range members {
		if m.Role == project.RoleSupervisor {
			sups++
		}
	}
	if sups != 1 {
		t.Errorf("supervisors left = %d, want 1", sups)
	}
}

func TestServiceChangeMemberRole(t *testing.T) {
	svc, repo, ntf := setupService(t)

	prj, err := svc.Create(ctx, project.NewProject{Name: "Thesis"}, "owner")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	testutil.AddMember(t, repo, prj.ID, "lead", project.RoleGroupLeader)
	testutil.AddMember(t, repo, prj.ID, "stud", project.RoleStudent)
	ntf.roles = nil

	t.Run("same role is a no-op", func(t *testing.T) {
		mem, err := svc.ChangeMemberRole(ctx, prj.ID, "stud", project.ChangeRole{Role: project.RoleStudent}, "owner")
		if err != nil {
			t.Fatalf("ChangeMemberRole() failed: %v", err)
		}
		if mem.Role != project.RoleStudent {
			t.Errorf("Role = %q, want %q", mem.Role, project.RoleStudent)
		}
		if len(ntf.roles) != 0 {
			t.Errorf("RoleAssigned calls = %+v, want none for a no-op", ntf.roles)
		}
	})

	t.Run("demoting the last group leader is rejected", func(t *testing.T) {
		_, err := svc.ChangeMemberRole(ctx, prj.ID, "lead", project.ChangeRole{Role: project.RoleStudent}, "owner")
		var ive *project.InvariantViolationError
		if !errors.As(err, &ive) {
			t.Fatalf("ChangeMemberRole() err = %v, want *InvariantViolationError", err)
		}
		if ive.Role != project.RoleGroupLeader {
			t.Errorf("violated role = %q, want %q", ive.Role, project.RoleGroupLeader)
		}
	})

	t.Run("promoting a student notifies them", func(t *testing.T) {
		mem, err := svc.ChangeMemberRole(ctx, prj.ID, "stud", project.ChangeRole{Role: project.RoleGroupLeader}, "owner")
		if err != nil {
			t.Fatalf("ChangeMemberRole() failed: %v", err)
		}
		if mem.Role != project.RoleGroupLeader {
			t.Errorf("Role = %q, want %q", mem.Role, project.RoleGroupLeader)
		}
		if len(ntf.roles) != 1 || ntf.roles[0].UserID != "stud" {
			t.Errorf("RoleAssigned calls = %+v, want one for stud", ntf.roles)
		}
	})
}
