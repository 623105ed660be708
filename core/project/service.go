package project

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/pcphq/pcp/core"
)

var (
	// errors
	ErrNotFound       = errors.New("project not found")
	ErrMemberNotFound = errors.New("project member not found")
	ErrMemberExists   = errors.New("user is already a member of this project")
)

type (
	Repository interface {
		CreateProject(ctx context.Context, prj Project) (Project, error)
		GetProjectByID(ctx context.Context, id string) (Project, error)
		QueryAllProjects(ctx context.Context) ([]Project, error)
		// QueryProjectsDueBy returns active projects whose due date is set and
		// not after cutoff (overdue ones included).
		QueryProjectsDueBy(ctx context.Context, cutoff time.Time) ([]Project, error)
		UpdateProject(ctx context.Context, prj Project) (Project, error)
		DeleteProjectsByID(ctx context.Context, ids ...string) error

		GetMembers(ctx context.Context, projectID string) ([]Member, error)
		GetMember(ctx context.Context, projectID, userID string) (Member, error)
		AddMember(ctx context.Context, mem Member) (Member, error)
		UpdateMemberRole(ctx context.Context, projectID, userID, role string) (Member, error)
		RemoveMember(ctx context.Context, projectID, userID string) error
	}

	// Notifier is the write path's hook into the notification engine.
	Notifier interface {
		ProjectSaved(ctx context.Context, prj Project, dueChanged bool)
		RoleAssigned(ctx context.Context, prj Project, mem Member, actorID string)
	}

	Service struct {
		repo     Repository
		notifier Notifier
		logger   core.Logger

		// per-project serialization of membership mutations
		mu    sync.Mutex
		locks map[string]*sync.Mutex
	}
)

func NewService(repo Repository, notifier Notifier, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (svc *Service) projectLock(id string) *sync.Mutex {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	lock, ok := svc.locks[id]
	if !ok {
		lock = new(sync.Mutex)
		svc.locks[id] = lock
	}
	return lock
}

// Create creates a Project and installs its creator as the first member with
// the supervisor role. Adding a group leader next is up to the caller.
func (svc *Service) Create(ctx context.Context, np NewProject, ownerID string) (Project, error) {
	now := time.Now().UTC()
	prj := Project{
		Name:        np.Name,
		Description: np.Description,
		Status:      StatusPlanning,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !np.DueDate.IsZero() {
		prj.DueDate = np.DueDate.UTC()
	}

	prj, err := svc.repo.CreateProject(ctx, prj)
	if err != nil {
		return Project{}, errors.Wrap(err, "creating project")
	}
	if _, err = svc.repo.AddMember(ctx, Member{
		ProjectID: prj.ID,
		UserID:    ownerID,
		Role:      RoleSupervisor,
		JoinedAt:  now,
	}); err != nil {
		return Project{}, errors.Wrap(err, "adding project owner as supervisor")
	}

	if svc.notifier != nil {
		svc.notifier.ProjectSaved(ctx, prj, prj.HasDueDate())
	}
	return prj, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Project, error) {
	return svc.repo.GetProjectByID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Project, error) {
	return svc.repo.QueryAllProjects(ctx)
}

func (svc *Service) Update(ctx context.Context, id string, up UpdateProject) (Project, error) {
	orig, err := svc.repo.GetProjectByID(ctx, id)
	if err != nil {
		return Project{}, err
	}

	prj := orig
	if up.Name != "" {
		prj.Name = up.Name
	}
	if up.Description != nil {
		prj.Description = *up.Description
	}
	if up.Status != "" {
		prj.Status = up.Status
	}
	// the "did due date change" decision is made here, once, before the
	// evaluator is invoked
	var dueChanged bool
	if up.DueDate != nil && !up.DueDate.UTC().Equal(orig.DueDate) {
		prj.DueDate = up.DueDate.UTC()
		dueChanged = true
	}
	prj.UpdatedAt = time.Now().UTC()

	prj, err = svc.repo.UpdateProject(ctx, prj)
	if err != nil {
		return Project{}, errors.Wrap(err, "updating project")
	}

	if svc.notifier != nil {
		svc.notifier.ProjectSaved(ctx, prj, dueChanged)
	}
	return prj, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteProjectsByID(ctx, ids...)
}

func (svc *Service) Members(ctx context.Context, projectID string) ([]Member, error) {
	return svc.repo.GetMembers(ctx, projectID)
}

func (svc *Service) GetMember(ctx context.Context, projectID, userID string) (Member, error) {
	return svc.repo.GetMember(ctx, projectID, userID)
}

// AddMember adds a user to a project. Adding never reduces a protected-role
// count so no invariant guard applies.
func (svc *Service) AddMember(ctx context.Context, projectID string, nm NewMember, actorID string) (Member, error) {
	lock := svc.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	prj, err := svc.repo.GetProjectByID(ctx, projectID)
	if err != nil {
		return Member{}, err
	}
	if _, err = svc.repo.GetMember(ctx, projectID, nm.UserID); err == nil {
		return Member{}, ErrMemberExists
	} else if errors.Cause(err) != ErrMemberNotFound {
		return Member{}, errors.Wrap(err, "checking existing member")
	}

	mem, err := svc.repo.AddMember(ctx, Member{
		ProjectID: projectID,
		UserID:    nm.UserID,
		Role:      nm.Role,
		JoinedAt:  time.Now().UTC(),
	})
	if err != nil {
		return Member{}, errors.Wrap(err, "adding member")
	}

	if svc.notifier != nil {
		svc.notifier.RoleAssigned(ctx, prj, mem, actorID)
	}
	return mem, nil
}

// RemoveMember removes a member, rejecting the removal with an
// *InvariantViolationError if the remaining set would lack a supervisor or a
// group leader.
func (svc *Service) RemoveMember(ctx context.Context, projectID, userID string) error {
	lock := svc.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	members, err := svc.repo.GetMembers(ctx, projectID)
	if err != nil {
		return errors.Wrap(err, "reading project members")
	}
	if !hasMember(members, userID) {
		return ErrMemberNotFound
	}
	if err = checkRemove(members, userID); err != nil {
		return err
	}
	return svc.repo.RemoveMember(ctx, projectID, userID)
}

// ChangeMemberRole changes a member's role, rejecting the change with an
// *InvariantViolationError if a protected-role count would drop below one.
func (svc *Service) ChangeMemberRole(ctx context.Context, projectID, userID string, cr ChangeRole, actorID string) (Member, error) {
	lock := svc.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	members, err := svc.repo.GetMembers(ctx, projectID)
	if err != nil {
		return Member{}, errors.Wrap(err, "reading project members")
	}
	var orig *Member
	for i := range members {
		if members[i].UserID == userID {
			orig = &members[i]
			break
		}
	}
	if orig == nil {
		return Member{}, ErrMemberNotFound
	}
	if orig.Role == cr.Role {
		return *orig, nil
	}
	if err = checkChangeRole(members, userID, cr.Role); err != nil {
		return Member{}, err
	}

	mem, err := svc.repo.UpdateMemberRole(ctx, projectID, userID, cr.Role)
	if err != nil {
		return Member{}, errors.Wrap(err, "updating member role")
	}

	if svc.notifier != nil {
		prj, err := svc.repo.GetProjectByID(ctx, projectID)
		if err == nil {
			svc.notifier.RoleAssigned(ctx, prj, mem, actorID)
		} else if svc.logger != nil {
			svc.logger.Warn("role change notification skipped", err)
		}
	}
	return mem, nil
}

func hasMember(members []Member, userID string) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
