package notification

import (
	"context"

	"github.com/pkg/errors"

	"github.com/pcphq/pcp/core/project"
	"github.com/pcphq/pcp/core/task"
)

type (
	// MemberReader reads a project's current member set.
	MemberReader interface {
		GetMembers(ctx context.Context, projectID string) ([]project.Member, error)
	}

	// AssigneeReader reads a task's current assignee set.
	AssigneeReader interface {
		GetAssignees(ctx context.Context, taskID string) ([]string, error)
	}

	// Resolver determines who must receive a notification. Membership is
	// always re-read at notification time, never snapshotted: a member added
	// after an entity was created still receives future reminders.
	Resolver struct {
		members   MemberReader
		assignees AssigneeReader
	}
)

func NewResolver(members MemberReader, assignees AssigneeReader) *Resolver {
	return &Resolver{members: members, assignees: assignees}
}

// ResolveProject returns all current members of the project, minus the actor
// that caused the event when one is supplied.
func (r *Resolver) ResolveProject(ctx context.Context, projectID, excludeActorID string) ([]string, error) {
	members, err := r.members.GetMembers(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "reading project members")
	}
	recipients := make([]string, 0, len(members))
	for _, m := range members {
		if excludeActorID != "" && m.UserID == excludeActorID {
			continue
		}
		recipients = append(recipients, m.UserID)
	}
	return recipients, nil
}

// ResolveTask returns the task's assignees; a task with no assignees falls
// back to the parent project's group leaders. A project with no group leaders
// either (should not occur given the membership invariant) resolves to an
// empty set, which callers treat as "skip", not as an error.
func (r *Resolver) ResolveTask(ctx context.Context, tsk task.Task) ([]string, error) {
	assignees, err := r.assignees.GetAssignees(ctx, tsk.ID)
	if err != nil {
		return nil, errors.Wrap(err, "reading task assignees")
	}
	if len(assignees) > 0 {
		return assignees, nil
	}

	members, err := r.members.GetMembers(ctx, tsk.ProjectID)
	if err != nil {
		return nil, errors.Wrap(err, "reading project members")
	}
	var leaders []string
	for _, m := range members {
		if m.Role == project.RoleGroupLeader {
			leaders = append(leaders, m.UserID)
		}
	}
	return leaders, nil
}
