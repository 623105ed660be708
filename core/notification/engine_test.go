package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/pcphq/pcp/core"
	"github.com/pcphq/pcp/core/notification"
	"github.com/pcphq/pcp/core/project"
	"github.com/pcphq/pcp/core/task"
	dummydb "github.com/pcphq/pcp/storage/database/dummy"
	testutil "github.com/pcphq/pcp/tests"
)

var ctx = context.Background()

type engineEnv struct {
	now     time.Time
	prjRepo project.Repository
	tskRepo task.Repository
	ntfRepo notification.Repository
	ledger  notification.Ledger
	engine  *notification.Engine
}

func (env *engineEnv) advance(d time.Duration) { env.now = env.now.Add(d) }

func setupEngine(t *testing.T, ledger notification.Ledger) *engineEnv {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}

	env := &engineEnv{
		now:     time.Date(2021, 6, 15, 10, 0, 0, 0, time.UTC),
		prjRepo: dummydb.NewProjectRepository(db),
		tskRepo: dummydb.NewTaskRepository(db),
		ntfRepo: dummydb.NewNotificationRepository(db),
		ledger:  ledger,
	}
	if env.ledger == nil {
		env.ledger = dummydb.NewLedger(db)
	}

	clock := core.ClockFunc(func() time.Time { return env.now })
	logger := testutil.Logger{}
	env.engine = notification.NewEngine(notification.EngineDeps{
		Conf: core.NotificationConfig{
			SweepWindow: 48 * time.Hour,
			EventWindow: 24 * time.Hour,
		},
		Clock:      clock,
		Projects:   env.prjRepo,
		Tasks:      env.tskRepo,
		Ledger:     env.ledger,
		Resolver:   notification.NewResolver(env.prjRepo, env.tskRepo),
		Dispatcher: notification.NewDispatcher(env.ntfRepo, clock, logger),
		Logger:     logger,
	})
	return env
}

func (env *engineEnv) notificationsFor(t *testing.T, userID string) []notification.Notification {
	t.Helper()
	ntfs, err := env.ntfRepo.QueryNotificationsByRecipient(ctx, userID)
	if err != nil {
		t.Fatalf("QueryNotificationsByRecipient() failed: %v", err)
	}
	return ntfs
}

func kinds(ntfs []notification.Notification) []string {
	ks := make([]string, len(ntfs))
	for i, n := range ntfs {
		ks[i] = n.Kind
	}
	return ks
}

func TestEngineSweepDeduplicates(t *testing.T) {
	env := setupEngine(t, nil)

	prj := testutil.CreateProject(t, env.prjRepo, "Thesis", "sup", env.now.Add(20*time.Hour))
	testutil.AddMember(t, env.prjRepo, prj.ID, "sup", project.RoleSupervisor)
	testutil.AddMember(t, env.prjRepo, prj.ID, "lead", project.RoleGroupLeader)

	rep := env.engine.RunSweep(ctx)
	if len(rep.Errors) > 0 {
		t.Fatalf("RunSweep() errors = %v", rep.Errors)
	}
	if rep.Dispatched != 2 {
		t.Errorf("first sweep Dispatched = %d, want 2", rep.Dispatched)
	}

	// an hour later the same project is still due-soon; the ledger must
	// suppress a second round
	env.advance(time.Hour)
	rep = env.engine.RunSweep(ctx)
	if rep.Dispatched != 0 {
		t.Errorf("second sweep Dispatched = %d, want 0", rep.Dispatched)
	}
	if rep.Suppressed != 1 {
		t.Errorf("second sweep Suppressed = %d, want 1", rep.Suppressed)
	}

	for _, uid := range []string{"sup", "lead"} {
		if got := env.notificationsFor(t, uid); len(got) != 1 {
			t.Errorf("user %s has %d notifications %v, want 1", uid, len(got), kinds(got))
		}
	}
}

func TestEngineSweepEscalatesToOverdue(t *testing.T) {
	env := setupEngine(t, nil)

	prj := testutil.CreateProject(t, env.prjRepo, "Thesis", "sup", env.now.Add(time.Hour))
	testutil.AddMember(t, env.prjRepo, prj.ID, "sup", project.RoleSupervisor)

	env.engine.RunSweep(ctx)

	// past the due date now: overdue is a distinct occurrence, the earlier
	// due-soon entry must not suppress it
	env.advance(2 * time.Hour)
	rep := env.engine.RunSweep(ctx)
	if rep.Dispatched != 1 {
		t.Fatalf("overdue sweep Dispatched = %d, want 1", rep.Dispatched)
	}

	got := env.notificationsFor(t, "sup")
	if len(got) != 2 {
		t.Fatalf("user has %d notifications %v, want 2", len(got), kinds(got))
	}
	want := map[string]bool{notification.KindDueSoon: true, notification.KindOverdue: true}
	for _, n := range got {
		if !want[n.Kind] {
			t.Errorf("unexpected kind %q", n.Kind)
		}
		delete(want, n.Kind)
	}
}

func TestEngineSweepIgnoresInactiveAndFarFuture(t *testing.T) {
	env := setupEngine(t, nil)

	done := testutil.CreateProject(t, env.prjRepo, "Done", "sup", env.now.Add(time.Hour))
	done.Status = project.StatusCompleted
	if _, err := env.prjRepo.UpdateProject(ctx, done); err != nil {
		t.Fatalf("UpdateProject() failed: %v", err)
	}
	testutil.AddMember(t, env.prjRepo, done.ID, "sup", project.RoleSupervisor)

	far := testutil.CreateProject(t, env.prjRepo, "Far", "sup", env.now.Add(30*24*time.Hour))
	testutil.AddMember(t, env.prjRepo, far.ID, "sup", project.RoleSupervisor)

	rep := env.engine.RunSweep(ctx)
	if rep.Dispatched != 0 {
		t.Errorf("RunSweep() Dispatched = %d, want 0", rep.Dispatched)
	}
	if got := env.notificationsFor(t, "sup"); len(got) != 0 {
		t.Errorf("user has %d notifications %v, want 0", len(got), kinds(got))
	}
}

func TestEngineSweepSkipsEntityWithoutRecipients(t *testing.T) {
	env := setupEngine(t, nil)

	// a project with no members resolves to no recipients: skipped, not an error
	testutil.CreateProject(t, env.prjRepo, "Empty", "sup", env.now.Add(time.Hour))

	rep := env.engine.RunSweep(ctx)
	if len(rep.Errors) > 0 {
		t.Errorf("RunSweep() errors = %v, want none", rep.Errors)
	}
	if rep.Dispatched != 0 {
		t.Errorf("RunSweep() Dispatched = %d, want 0", rep.Dispatched)
	}
}

func TestEngineTaskRecipients(t *testing.T) {
	t.Run("assignees preferred", func(t *testing.T) {
		env := setupEngine(t, nil)

		prj := testutil.CreateProject(t, env.prjRepo, "Thesis", "sup", time.Time{})
		testutil.AddMember(t, env.prjRepo, prj.ID, "sup", project.RoleSupervisor)
		testutil.AddMember(t, env.prjRepo, prj.ID, "lead", project.RoleGroupLeader)
		testutil.AddMember(t, env.prjRepo, prj.ID, "stud", project.RoleStudent)

		tsk := testutil.CreateTask(t, env.tskRepo, prj.ID, "Chapter 1", "sup", env.now.Add(3*time.Hour))
		if err := env.tskRepo.SetAssignees(ctx, tsk.ID, []string{"stud"}); err != nil {
			t.Fatalf("SetAssignees() failed: %v", err)
		}

		rep := env.engine.RunSweep(ctx)
		if rep.Dispatched != 1 {
			t.Fatalf("RunSweep() Dispatched = %d, want 1", rep.Dispatched)
		}
		if got := env.notificationsFor(t, "stud"); len(got) != 1 {
			t.Errorf("assignee has %d notifications, want 1", len(got))
		}
		if got := env.notificationsFor(t, "lead"); len(got) != 0 {
			t.Errorf("group leader has %d notifications, want 0", len(got))
		}
	})

	t.Run("unassigned falls back to group leaders", func(t *testing.T) {
		env := setupEngine(t, nil)

		prj := testutil.CreateProject(t, env.prjRepo, "Thesis", "sup", time.Time{})
		testutil.AddMember(t, env.prjRepo, prj.ID, "sup", project.RoleSupervisor)
		testutil.AddMember(t, env.prjRepo, prj.ID, "lead", project.RoleGroupLeader)
		testutil.AddMember(t, env.prjRepo, prj.ID, "stud", project.RoleStudent)

		testutil.CreateTask(t, env.tskRepo, prj.ID, "Chapter 1", "sup", env.now.Add(3*time.Hour))

		rep := env.engine.RunSweep(ctx)
		if rep.Dispatched != 1 {
			t.Fatalf("RunSweep() Dispatched = %d, want 1", rep.Dispatched)
		}
		if got := env.notificationsFor(t, "lead"); len(got) != 1 {
			t.Errorf("group leader has %d notifications, want 1", len(got))
		}
		for _, uid := range []string{"sup", "stud"} {
			if got := env.notificationsFor(t, uid); len(got) != 0 {
				t.Errorf("user %s has %d notifications, want 0", uid, len(got))
			}
		}
	})
}

func TestEngineEventAndSweepShareLedger(t *testing.T) {
	env := setupEngine(t, nil)

	prj := testutil.CreateProject(t, env.prjRepo, "Thesis", "sup", env.now.Add(10*time.Hour))
	testutil.AddMember(t, env.prjRepo, prj.ID, "sup", project.RoleSupervisor)

	// the on-save trigger fires first...
	env.engine.ProjectSaved(ctx, prj, true)
	if got := env.notificationsFor(t, "sup"); len(got) != 1 {
		t.Fatalf("after save trigger: %d notifications, want 1", len(got))
	}

	// ...and a later sweep must not repeat it
	env.advance(time.Hour)
	rep := env.engine.RunSweep(ctx)
	if rep.Dispatched != 0 {
		t.Errorf("RunSweep() Dispatched = %d, want 0", rep.Dispatched)
	}
	if got := env.notificationsFor(t, "sup"); len(got) != 1 {
		t.Errorf("after sweep: %d notifications, want 1", len(got))
	}
}

func TestEngineProjectSavedNoDueChange(t *testing.T) {
	env := setupEngine(t, nil)

	prj := testutil.CreateProject(t, env.prjRepo, "Thesis", "sup", env.now.Add(10*time.Hour))
	testutil.AddMember(t, env.prjRepo, prj.ID, "sup", project.RoleSupervisor)

	env.engine.ProjectSaved(ctx, prj, false)
	if got := env.notificationsFor(t, "sup"); len(got) != 0 {
		t.Errorf("user has %d notifications, want 0", len(got))
	}
}

func TestEngineMovedDueDateGetsFreshReminder(t *testing.T) {
	env := setupEngine(t, nil)

	prj := testutil.CreateProject(t, env.prjRepo, "Thesis", "sup", env.now.Add(10*time.Hour))
	testutil.AddMember(t, env.prjRepo, prj.ID, "sup", project.RoleSupervisor)

	env.engine.RunSweep(ctx)

	// due date pushed out, still within the sweep window: a new occurrence
	prj.DueDate = env.now.Add(40 * time.Hour)
	if _, err := env.prjRepo.UpdateProject(ctx, prj); err != nil {
		t.Fatalf("UpdateProject() failed: %v", err)
	}

	rep := env.engine.RunSweep(ctx)
	if rep.Dispatched != 1 {
		t.Errorf("RunSweep() Dispatched = %d, want 1", rep.Dispatched)
	}
	if got := env.notificationsFor(t, "sup"); len(got) != 2 {
		t.Errorf("user has %d notifications %v, want 2", len(got), kinds(got))
	}
}

// brokenLedger simulates an unavailable idempotency store.
type brokenLedger struct{}

func (brokenLedger) ShouldSend(context.Context, string) (bool, error) {
	return false, errors.New("ledger down")
}
func (brokenLedger) MarkSent(context.Context, string, time.Time) error {
	return errors.New("ledger down")
}

func TestEngineDispatchesWhenLedgerUnavailable(t *testing.T) {
	env := setupEngine(t, brokenLedger{})

	prj := testutil.CreateProject(t, env.prjRepo, "Thesis", "sup", env.now.Add(10*time.Hour))
	testutil.AddMember(t, env.prjRepo, prj.ID, "sup", project.RoleSupervisor)

	// a failing ledger read is treated as "not yet sent"
	rep := env.engine.RunSweep(ctx)
	if len(rep.Errors) > 0 {
		t.Fatalf("RunSweep() errors = %v, want none", rep.Errors)
	}
	if rep.Dispatched != 1 {
		t.Errorf("RunSweep() Dispatched = %d, want 1", rep.Dispatched)
	}
}

func TestEngineRoleAssigned(t *testing.T) {
	env := setupEngine(t, nil)

	prj := testutil.CreateProject(t, env.prjRepo, "Thesis", "sup", time.Time{})
	mem := project.Member{ProjectID: prj.ID, UserID: "lead", Role: project.RoleGroupLeader}

	t.Run("notifies the member", func(t *testing.T) {
		env.engine.RoleAssigned(ctx, prj, mem, "sup")
		got := env.notificationsFor(t, "lead")
		if len(got) != 1 {
			t.Fatalf("member has %d notifications, want 1", len(got))
		}
		if got[0].Kind != notification.KindRoleAssigned {
			t.Errorf("Kind = %q, want %q", got[0].Kind, notification.KindRoleAssigned)
		}
	})

	t.Run("self-assignment is silent", func(t *testing.T) {
		self := project.Member{ProjectID: prj.ID, UserID: "sup", Role: project.RoleSupervisor}
		env.engine.RoleAssigned(ctx, prj, self, "sup")
		if got := env.notificationsFor(t, "sup"); len(got) != 0 {
			t.Errorf("actor has %d notifications, want 0", len(got))
		}
	})
}

func TestEngineTaskAssigned(t *testing.T) {
	env := setupEngine(t, nil)

	prj := testutil.CreateProject(t, env.prjRepo, "Thesis", "sup", time.Time{})
	tsk := testutil.CreateTask(t, env.tskRepo, prj.ID, "Chapter 1", "sup", time.Time{})

	env.engine.TaskAssigned(ctx, tsk, []string{"stud", "sup"}, "sup")

	if got := env.notificationsFor(t, "stud"); len(got) != 1 {
		t.Errorf("assignee has %d notifications, want 1", len(got))
	}
	// the actor assigned themselves; no self-notification
	if got := env.notificationsFor(t, "sup"); len(got) != 0 {
		t.Errorf("actor has %d notifications, want 0", len(got))
	}
}

func TestEngineTaskCreatedNotifiesMembers(t *testing.T) {
	env := setupEngine(t, nil)

	prj := testutil.CreateProject(t, env.prjRepo, "Thesis", "sup", time.Time{})
	testutil.AddMember(t, env.prjRepo, prj.ID, "sup", project.RoleSupervisor)
	testutil.AddMember(t, env.prjRepo, prj.ID, "lead", project.RoleGroupLeader)

	tsk := testutil.CreateTask(t, env.tskRepo, prj.ID, "Chapter 1", "sup", time.Time{})
	env.engine.TaskSaved(ctx, tsk, true, false)

	got := env.notificationsFor(t, "lead")
	if len(got) != 1 {
		t.Fatalf("member has %d notifications, want 1", len(got))
	}
	if got[0].Kind != notification.KindCreated {
		t.Errorf("Kind = %q, want %q", got[0].Kind, notification.KindCreated)
	}
	// creator excluded
	if got := env.notificationsFor(t, "sup"); len(got) != 0 {
		t.Errorf("creator has %d notifications, want 0", len(got))
	}
}
