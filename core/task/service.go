package task

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/pcphq/pcp/core"
	"github.com/pcphq/pcp/core/project"
)

var (
	// errors
	ErrNotFound            = errors.New("task not found")
	ErrInvalidStatusChange = errors.New("invalid task status change")
	ErrAssigneeNotMember   = errors.New("assignee is not a member of the task's project")
)

type (
	Repository interface {
		CreateTask(ctx context.Context, tsk Task) (Task, error)
		GetTaskByID(ctx context.Context, id string) (Task, error)
		QueryTasksByProject(ctx context.Context, projectID string) ([]Task, error)
		// QueryTasksDueBy returns active tasks whose due date is set and not
		// after cutoff (overdue ones included).
		QueryTasksDueBy(ctx context.Context, cutoff time.Time) ([]Task, error)
		UpdateTask(ctx context.Context, tsk Task) (Task, error)
		DeleteTasksByID(ctx context.Context, ids ...string) error

		GetAssignees(ctx context.Context, taskID string) ([]string, error)
		SetAssignees(ctx context.Context, taskID string, userIDs []string) error
	}

	// MemberReader reads a project's current member set; implemented by
	// project.Service.
	MemberReader interface {
		Members(ctx context.Context, projectID string) ([]project.Member, error)
	}

	// Notifier is the write path's hook into the notification engine.
	Notifier interface {
		TaskSaved(ctx context.Context, tsk Task, created, dueChanged bool)
		TaskAssigned(ctx context.Context, tsk Task, assigneeIDs []string, actorID string)
	}

	Service struct {
		repo     Repository
		members  MemberReader
		notifier Notifier
		logger   core.Logger
	}
)

func NewService(repo Repository, members MemberReader, notifier Notifier, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		members:  members,
		notifier: notifier,
		logger:   logger,
	}
}

// checkAssignees verifies that every assignee is a member of the project.
func (svc *Service) checkAssignees(ctx context.Context, projectID string, assigneeIDs []string) error {
	if len(assigneeIDs) == 0 {
		return nil
	}
	members, err := svc.members.Members(ctx, projectID)
	if err != nil {
		return errors.Wrap(err, "reading project members")
	}
	memberIDs := make(map[string]struct{}, len(members))
	for _, m := range members {
		memberIDs[m.UserID] = struct{}{}
	}
	for _, id := range assigneeIDs {
		if _, ok := memberIDs[id]; !ok {
			return core.NewValidationError(ErrAssigneeNotMember, core.FieldError{
				Field: "assignee_ids", Error: ErrAssigneeNotMember.Error(),
			})
		}
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nt NewTask, creatorID string) (Task, error) {
	if err := svc.checkAssignees(ctx, nt.ProjectID, nt.AssigneeIDs); err != nil {
		return Task{}, err
	}

	now := time.Now().UTC()
	tsk := Task{
		ProjectID:   nt.ProjectID,
		Title:       nt.Title,
		Description: nt.Description,
		Status:      StatusPending,
		CreatorID:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !nt.DueDate.IsZero() {
		tsk.DueDate = nt.DueDate.UTC()
	}

	tsk, err := svc.repo.CreateTask(ctx, tsk)
	if err != nil {
		return Task{}, errors.Wrap(err, "creating task")
	}
	if len(nt.AssigneeIDs) > 0 {
		if err = svc.repo.SetAssignees(ctx, tsk.ID, nt.AssigneeIDs); err != nil {
			return Task{}, errors.Wrap(err, "setting task assignees")
		}
	}

	if svc.notifier != nil {
		svc.notifier.TaskSaved(ctx, tsk, true, tsk.HasDueDate())
		if len(nt.AssigneeIDs) > 0 {
			svc.notifier.TaskAssigned(ctx, tsk, nt.AssigneeIDs, creatorID)
		}
	}
	return tsk, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Task, error) {
	return svc.repo.GetTaskByID(ctx, id)
}

func (svc *Service) QueryByProject(ctx context.Context, projectID string) ([]Task, error) {
	return svc.repo.QueryTasksByProject(ctx, projectID)
}

func (svc *Service) Assignees(ctx context.Context, taskID string) ([]string, error) {
	return svc.repo.GetAssignees(ctx, taskID)
}

func (svc *Service) Update(ctx context.Context, id string, ut UpdateTask) (Task, error) {
	orig, err := svc.repo.GetTaskByID(ctx, id)
	if err != nil {
		return Task{}, err
	}

	tsk := orig
	if ut.Title != "" {
		tsk.Title = ut.Title
	}
	if ut.Description != nil {
		tsk.Description = *ut.Description
	}
	if ut.Status != "" && ut.Status != orig.Status {
		if !StatusChangeAllowed(orig.Status, ut.Status) {
			return Task{}, ErrInvalidStatusChange
		}
		tsk.Status = ut.Status
	}
	// the "did due date change" decision is made here, once, before the
	// evaluator is invoked
	var dueChanged bool
	if ut.DueDate != nil && !ut.DueDate.UTC().Equal(orig.DueDate) {
		tsk.DueDate = ut.DueDate.UTC()
		dueChanged = true
	}
	tsk.UpdatedAt = time.Now().UTC()

	tsk, err = svc.repo.UpdateTask(ctx, tsk)
	if err != nil {
		return Task{}, errors.Wrap(err, "updating task")
	}

	if svc.notifier != nil {
		svc.notifier.TaskSaved(ctx, tsk, false, dueChanged)
	}
	return tsk, nil
}

// Assign replaces a task's assignee set; newly added assignees are notified.
func (svc *Service) Assign(ctx context.Context, taskID string, assigneeIDs []string, actorID string) (Task, error) {
	tsk, err := svc.repo.GetTaskByID(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	if err = svc.checkAssignees(ctx, tsk.ProjectID, assigneeIDs); err != nil {
		return Task{}, err
	}

	orig, err := svc.repo.GetAssignees(ctx, taskID)
	if err != nil {
		return Task{}, errors.Wrap(err, "reading task assignees")
	}
	origSet := make(map[string]struct{}, len(orig))
	for _, id := range orig {
		origSet[id] = struct{}{}
	}
	var added []string
	for _, id := range assigneeIDs {
		if _, ok := origSet[id]; !ok {
			added = append(added, id)
		}
	}

	if err = svc.repo.SetAssignees(ctx, taskID, assigneeIDs); err != nil {
		return Task{}, errors.Wrap(err, "setting task assignees")
	}

	if svc.notifier != nil && len(added) > 0 {
		svc.notifier.TaskAssigned(ctx, tsk, added, actorID)
	}
	return tsk, nil
}

// Delete is terminal; deleted tasks are gone for good.
func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteTasksByID(ctx, ids...)
}
