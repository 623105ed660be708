package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/pcphq/pcp/core"
	"github.com/pcphq/pcp/core/project"
	"github.com/pcphq/pcp/core/task"
)

type (
	// ProjectSource lists active projects in the sweep's due range.
	ProjectSource interface {
		QueryProjectsDueBy(ctx context.Context, cutoff time.Time) ([]project.Project, error)
	}

	// TaskSource lists active tasks in the sweep's due range.
	TaskSource interface {
		QueryTasksDueBy(ctx context.Context, cutoff time.Time) ([]task.Task, error)
	}

	EngineDeps struct {
		Conf       core.NotificationConfig
		Clock      core.Clock
		Projects   ProjectSource
		Tasks      TaskSource
		Ledger     Ledger
		Resolver   *Resolver
		Dispatcher *Dispatcher
		Logger     core.Logger
	}

	// Engine wires the deadline pipeline together:
	// trigger -> Evaluate -> ledger check -> resolve -> dispatch -> mark sent.
	// Both the periodic sweep and the on-save event path run through the same
	// code, so their classification and duplicate suppression can never diverge.
	Engine struct {
		conf       core.NotificationConfig
		clock      core.Clock
		projects   ProjectSource
		tasks      TaskSource
		ledger     Ledger
		resolver   *Resolver
		dispatcher *Dispatcher
		logger     core.Logger
	}

	// SweepReport summarizes one sweep run.
	SweepReport struct {
		ProjectsSeen int
		TasksSeen    int
		Dispatched   int
		Suppressed   int
		Errors       []error
	}
)

func NewEngine(deps EngineDeps) *Engine {
	return &Engine{
		conf:       deps.Conf,
		clock:      deps.Clock,
		projects:   deps.Projects,
		tasks:      deps.Tasks,
		ledger:     deps.Ledger,
		resolver:   deps.Resolver,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

var (
	_ project.Notifier = (*Engine)(nil)
	_ task.Notifier    = (*Engine)(nil)
)

// RunSweep scans all active projects and tasks with a due date at or below
// now+SweepWindow (overdue ones included) and feeds each through the
// pipeline. One entity's failure never aborts the rest; re-entrant runs are
// safe, the ledger is the safety net. A missed schedule needs no special
// handling: classification is always computed fresh from now, so a never-
// swept entity escalates straight to overdue.
func (e *Engine) RunSweep(ctx context.Context) SweepReport {
	now := e.clock.Now().UTC()
	cutoff := now.Add(e.conf.SweepWindow)
	var rep SweepReport

	projects, err := e.projects.QueryProjectsDueBy(ctx, cutoff)
	if err != nil {
		rep.Errors = append(rep.Errors, errors.Wrap(err, "listing due projects"))
	}
	for i := range projects {
		if ctx.Err() != nil {
			rep.Errors = append(rep.Errors, ctx.Err())
			return rep
		}
		rep.ProjectsSeen++
		e.sweepProject(ctx, projects[i], now, &rep)
	}

	tasks, err := e.tasks.QueryTasksDueBy(ctx, cutoff)
	if err != nil {
		rep.Errors = append(rep.Errors, errors.Wrap(err, "listing due tasks"))
	}
	for i := range tasks {
		if ctx.Err() != nil {
			rep.Errors = append(rep.Errors, ctx.Err())
			return rep
		}
		rep.TasksSeen++
		e.sweepTask(ctx, tasks[i], now, &rep)
	}
	return rep
}

func (e *Engine) sweepProject(ctx context.Context, prj project.Project, now time.Time, rep *SweepReport) {
	created, suppressed, err := e.notifyDeadline(ctx, deadlineJob{
		entityType: EntityProject,
		entityID:   prj.ID,
		due:        prj.DueDate,
		now:        now,
		window:     e.conf.SweepWindow,
		resolve: func(ctx context.Context) ([]string, error) {
			return e.resolver.ResolveProject(ctx, prj.ID, "")
		},
		payload: func(kind string) Payload { return projectPayload(prj, kind) },
	})
	rep.Dispatched += created
	if suppressed {
		rep.Suppressed++
	}
	if err != nil {
		// skip, log, continue sweep
		rep.Errors = append(rep.Errors, errors.Wrapf(err, "project %s", prj.ID))
	}
}

func (e *Engine) sweepTask(ctx context.Context, tsk task.Task, now time.Time, rep *SweepReport) {
	created, suppressed, err := e.notifyDeadline(ctx, deadlineJob{
		entityType: EntityTask,
		entityID:   tsk.ID,
		due:        tsk.DueDate,
		now:        now,
		window:     e.conf.SweepWindow,
		resolve: func(ctx context.Context) ([]string, error) {
			return e.resolver.ResolveTask(ctx, tsk)
		},
		payload: func(kind string) Payload { return taskPayload(tsk, kind) },
	})
	rep.Dispatched += created
	if suppressed {
		rep.Suppressed++
	}
	if err != nil {
		rep.Errors = append(rep.Errors, errors.Wrapf(err, "task %s", tsk.ID))
	}
}

// ProjectSaved is the event trigger invoked by the write path after a project
// create/update. The caller decides whether the due date changed; nothing to
// do when it did not. Must not block the triggering write for long: the
// single-entity pipeline is synchronous but cheap, queuing is the caller's
// business.
func (e *Engine) ProjectSaved(ctx context.Context, prj project.Project, dueChanged bool) {
	if !dueChanged || !prj.HasDueDate() || !prj.IsActive() {
		return
	}
	created, _, err := e.notifyDeadline(ctx, deadlineJob{
		entityType: EntityProject,
		entityID:   prj.ID,
		due:        prj.DueDate,
		now:        e.clock.Now().UTC(),
		window:     e.conf.EventWindow,
		resolve: func(ctx context.Context) ([]string, error) {
			return e.resolver.ResolveProject(ctx, prj.ID, "")
		},
		payload: func(kind string) Payload { return projectPayload(prj, kind) },
	})
	if err != nil {
		e.logger.Error(fmt.Sprintf("project %s save trigger", prj.ID), err)
	} else if created > 0 {
		e.logger.Info(fmt.Sprintf("project %s save trigger dispatched %d notification(s)", prj.ID, created))
	}
}

// TaskSaved is the event trigger invoked by the write path after a task
// create/update. On creation the project's other members are told about the
// new task; a due-date change feeds the deadline pipeline.
func (e *Engine) TaskSaved(ctx context.Context, tsk task.Task, taskCreated, dueChanged bool) {
	if taskCreated {
		e.notifyTaskCreated(ctx, tsk)
	}
	if !dueChanged || !tsk.HasDueDate() || !tsk.IsActive() {
		return
	}
	created, _, err := e.notifyDeadline(ctx, deadlineJob{
		entityType: EntityTask,
		entityID:   tsk.ID,
		due:        tsk.DueDate,
		now:        e.clock.Now().UTC(),
		window:     e.conf.EventWindow,
		resolve: func(ctx context.Context) ([]string, error) {
			return e.resolver.ResolveTask(ctx, tsk)
		},
		payload: func(kind string) Payload { return taskPayload(tsk, kind) },
	})
	if err != nil {
		e.logger.Error(fmt.Sprintf("task %s save trigger", tsk.ID), err)
	} else if created > 0 {
		e.logger.Info(fmt.Sprintf("task %s save trigger dispatched %d notification(s)", tsk.ID, created))
	}
}

func (e *Engine) notifyTaskCreated(ctx context.Context, tsk task.Task) {
	recipients, err := e.resolver.ResolveProject(ctx, tsk.ProjectID, tsk.CreatorID)
	if err != nil {
		e.logger.Error(fmt.Sprintf("resolving recipients for new task %s", tsk.ID), err)
		return
	}
	if len(recipients) == 0 {
		return
	}
	key := BuildKey(EntityTask, tsk.ID, KindCreated, e.clock.Now())
	e.dispatcher.Dispatch(ctx, KindCreated, EntityTask, tsk.ID, recipients, Payload{
		Title:   fmt.Sprintf("New Task: %s", tsk.Title),
		Message: fmt.Sprintf("A new task '%s' was created in your project.", tsk.Title),
		DueDate: tsk.DueDate,
	}, key)
}

// TaskAssigned notifies newly assigned members, excluding the actor that made
// the assignment.
func (e *Engine) TaskAssigned(ctx context.Context, tsk task.Task, assigneeIDs []string, actorID string) {
	recipients := make([]string, 0, len(assigneeIDs))
	for _, id := range assigneeIDs {
		if id != actorID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return
	}
	key := BuildKey(EntityTask, tsk.ID, KindTaskAssigned, e.clock.Now())
	e.dispatcher.Dispatch(ctx, KindTaskAssigned, EntityTask, tsk.ID, recipients, Payload{
		Title:   fmt.Sprintf("Task Assigned: %s", tsk.Title),
		Message: fmt.Sprintf("You have been assigned the task '%s'.", tsk.Title),
		DueDate: tsk.DueDate,
	}, key)
}

// RoleAssigned notifies a member of their (new) role on a project, unless
// they assigned it themselves.
func (e *Engine) RoleAssigned(ctx context.Context, prj project.Project, mem project.Member, actorID string) {
	if mem.UserID == actorID {
		return
	}
	key := BuildKey(EntityProject, prj.ID, KindRoleAssigned, e.clock.Now())
	e.dispatcher.Dispatch(ctx, KindRoleAssigned, EntityProject, prj.ID, []string{mem.UserID}, Payload{
		Title:   fmt.Sprintf("Role Assigned: %s", prj.Name),
		Message: fmt.Sprintf("You are now a %s on project '%s'.", mem.Role, prj.Name),
	}, key)
}

// deadlineJob is one entity's trip through the pipeline, a complete and
// independent unit. A sweep interrupted between entities corrupts nothing.
type deadlineJob struct {
	entityType string
	entityID   string
	due        time.Time
	now        time.Time
	window     time.Duration
	resolve    func(context.Context) ([]string, error)
	payload    func(kind string) Payload
}

func (e *Engine) notifyDeadline(ctx context.Context, job deadlineJob) (created int, suppressed bool, err error) {
	cls, err := Evaluate(job.due, job.now, job.window)
	if err != nil {
		return 0, false, err
	}
	kind, ok := cls.Kind()
	if !ok {
		return 0, false, nil
	}

	key := BuildKey(job.entityType, job.entityID, kind, job.due)

	send, err := e.ledger.ShouldSend(ctx, key)
	if err != nil {
		// ledger unavailable: treat as "not yet sent" and dispatch anyway;
		// a duplicate reminder beats a silent loss
		e.logger.Warn(fmt.Sprintf("ledger check failed for %s; dispatching anyway", key), err)
		send = true
	}
	if !send {
		return 0, true, nil
	}

	recipients, err := job.resolve(ctx)
	if err != nil {
		return 0, false, err
	}
	if len(recipients) == 0 {
		// not an error: log and skip
		e.logger.Info(fmt.Sprintf("no recipients for %s; skipping", key))
		return 0, false, nil
	}

	res := e.dispatcher.Dispatch(ctx, kind, job.entityType, job.entityID, recipients, job.payload(kind), key)
	if res.Created == 0 {
		// fully failed: leave the ledger untouched so the next trigger retries
		return 0, false, errors.Errorf("dispatch failed for all %d recipient(s) of %s", len(res.Failed), key)
	}
	if len(res.Failed) > 0 {
		e.logger.Warn(fmt.Sprintf("partial dispatch of %s: %d created, failed recipients %v", key, res.Created, res.Failed))
	}

	// mark only after at least one record was created; a failed mark is a
	// tolerated best-effort loss (worst case, a duplicate on the next trigger)
	if err = e.ledger.MarkSent(ctx, key, e.clock.Now().UTC()); err != nil {
		e.logger.Error(fmt.Sprintf("marking %s sent", key), err)
	}
	return res.Created, false, nil
}

func projectPayload(prj project.Project, kind string) Payload {
	switch kind {
	case KindOverdue:
		return Payload{
			Title:   fmt.Sprintf("Project Overdue: %s", prj.Name),
			Message: fmt.Sprintf("The project '%s' has passed its due date (%s).", prj.Name, prj.DueDate.Format("2006-01-02")),
			DueDate: prj.DueDate,
		}
	default:
		return Payload{
			Title:   fmt.Sprintf("Project Deadline Approaching: %s", prj.Name),
			Message: fmt.Sprintf("The project '%s' is due on %s. Please ensure all tasks are completed.", prj.Name, prj.DueDate.Format("2006-01-02")),
			DueDate: prj.DueDate,
		}
	}
}

func taskPayload(tsk task.Task, kind string) Payload {
	switch kind {
	case KindOverdue:
		return Payload{
			Title:   fmt.Sprintf("Task Overdue: %s", tsk.Title),
			Message: fmt.Sprintf("The task '%s' has passed its due date. Please check and update its status.", tsk.Title),
			DueDate: tsk.DueDate,
		}
	default:
		return Payload{
			Title:   fmt.Sprintf("Task Deadline Approaching: %s", tsk.Title),
			Message: fmt.Sprintf("The task '%s' is due on %s.", tsk.Title, tsk.DueDate.Format("2006-01-02 15:04")),
			DueDate: tsk.DueDate,
		}
	}
}
