package task

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pcphq/pcp/core"
)

// Task statuses, in lifecycle order. Transitions only move forward
// (pending -> in_progress -> completed/finalized); going back is rejected.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFinalized  = "finalized"
)

var (
	AllStatuses = []string{StatusPending, StatusInProgress, StatusCompleted, StatusFinalized}

	statusRanks = map[string]int{
		StatusPending:    0,
		StatusInProgress: 1,
		StatusCompleted:  2,
		StatusFinalized:  3,
	}
)

// StatusChangeAllowed reports whether a task may move from to the new status.
func StatusChangeAllowed(from, to string) bool {
	fromRank, ok := statusRanks[from]
	if !ok {
		return false
	}
	toRank, ok := statusRanks[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatorID   string    `json:"creator_id"`
	DueDate     time.Time `json:"due_date"`   // zero = no due date
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// HasDueDate reports whether a due date is set.
func (t Task) HasDueDate() bool { return !t.DueDate.IsZero() }

// IsActive reports whether the task should still be considered by the
// deadline sweep.
func (t Task) IsActive() bool {
	return t.Status == StatusPending || t.Status == StatusInProgress
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	ProjectID   string    `json:"project_id" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	AssigneeIDs []string  `json:"assignee_ids"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	return validate.Struct(nt)
}

// UpdateTask defines what information may be provided to modify an existing Task.
type UpdateTask struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `json:"status" validate:"omitempty,taskstatus"`
	DueDate     *time.Time `json:"due_date"`
}

func (ut *UpdateTask) Validate(validate *validator.Validate) error {
	ut.Title = core.CleanString(ut.Title)
	return validate.Struct(ut)
}
