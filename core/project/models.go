package project

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pcphq/pcp/core"
)

// Member roles
const (
	RoleSupervisor  = "supervisor"
	RoleGroupLeader = "group_leader"
	RoleStudent     = "student"
)

// AllRoles lists every assignable member role.
var AllRoles = []string{RoleSupervisor, RoleGroupLeader, RoleStudent}

// ProtectedRoles are the roles subject to the minimum-count-of-one invariant:
// a non-empty project must always retain at least one member in each.
var ProtectedRoles = []string{RoleSupervisor, RoleGroupLeader}

func IsProtectedRole(role string) bool {
	for _, r := range ProtectedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Project statuses
const (
	StatusPlanning   = "planning"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusCompleted  = "completed"
	StatusOnHold     = "on_hold"
)

var AllStatuses = []string{StatusPlanning, StatusInProgress, StatusReview, StatusCompleted, StatusOnHold}

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	OwnerID     string    `json:"owner_id"`
	DueDate     time.Time `json:"due_date"`   // date granularity; zero = no due date
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// HasDueDate reports whether a due date is set.
func (p Project) HasDueDate() bool { return !p.DueDate.IsZero() }

// IsActive reports whether the project should still be considered by the
// deadline sweep.
func (p Project) IsActive() bool { return p.Status != StatusCompleted }

// Member is the (project, user) association carrying the member's role.
type Member struct {
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"` // UTC
}

// NewProject contains information needed to create a new Project.
// The creator becomes the project's first member with the supervisor role;
// the creation workflow conventionally adds a group leader next.
type NewProject struct {
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Description = core.CleanString(np.Description)
	return validate.Struct(np)
}

// UpdateProject defines what information may be provided to modify an existing Project.
type UpdateProject struct {
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Status      string     `json:"status" validate:"omitempty,projectstatus"`
	DueDate     *time.Time `json:"due_date"`
}

func (up *UpdateProject) Validate(validate *validator.Validate) error {
	up.Name = core.CleanString(up.Name)
	return validate.Struct(up)
}

// NewMember contains information needed to add a member to a Project.
type NewMember struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required,memberrole"`
}

func (nm *NewMember) Validate(validate *validator.Validate) error {
	nm.Role = core.CleanString(nm.Role, true /* lower */)
	return validate.Struct(nm)
}

// ChangeRole contains the new role for an existing member.
type ChangeRole struct {
	Role string `json:"role" validate:"required,memberrole"`
}

func (cr *ChangeRole) Validate(validate *validator.Validate) error {
	cr.Role = core.CleanString(cr.Role, true /* lower */)
	return validate.Struct(cr)
}
