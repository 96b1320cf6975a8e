package task

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusInProgress Status = "In Progress"
	StatusComplete   Status = "Complete"
	StatusOverdue    Status = "Overdue"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusComplete, StatusOverdue:
		return true
	}
	return false
}

type Frequency string

const (
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
	FrequencyYearly  Frequency = "Yearly"
	FrequencyAdhoc   Frequency = "Adhoc"
)

func (f Frequency) Valid() bool {
	return f == FrequencyAdhoc || f.Periodic()
}

// Periodic reports whether f is a cadence that recurrence can expand.
func (f Frequency) Periodic() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Unassigned is the assigned_to value of a task nobody owns.
const Unassigned = "none"

type Task struct {
	ID              string     `json:"id" yaml:"id"`
	Project         string     `json:"project" yaml:"project"`
	TaskNo          int        `json:"task_no" yaml:"task_no"`
	StageGates      string     `json:"stage_gates" yaml:"stage_gates"`
	TaskType        string     `json:"task_type" yaml:"task_type"`
	Frequency       Frequency  `json:"frequency" yaml:"frequency"`
	Priority        Priority   `json:"priority" yaml:"priority"`
	TaskDescription string     `json:"task_description" yaml:"task_description"`
	AssignedTo      string     `json:"assigned_to" yaml:"assigned_to"`
	Notes           string     `json:"notes" yaml:"notes"`
	StartDate       Date       `json:"start_date" yaml:"start_date"`
	DueDate         Date       `json:"due_date" yaml:"due_date"`
	EstHours        float64    `json:"est_hours" yaml:"est_hours"`
	Status          Status     `json:"status" yaml:"status"`
	PercentComplete int        `json:"percent_complete" yaml:"percent_complete"`
	Done            bool       `json:"done" yaml:"done"`
	CompletedAt     *time.Time `json:"completed_at" yaml:"completed_at"`
	IsArchived      bool       `json:"is_archived" yaml:"is_archived"`
	ArchivedAt      *time.Time `json:"archived_at" yaml:"archived_at"`
	CreatedAt       time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Label is the human task number, e.g. "OPS-007".
func (t *Task) Label() string {
	return fmt.Sprintf("%s-%03d", t.Project, t.TaskNo)
}

func (t *Task) Clone() *Task {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.ArchivedAt != nil {
		at := *t.ArchivedAt
		c.ArchivedAt = &at
	}
	return &c
}

// CreateRequest carries the caller-supplied fields of a new task. Status is
// optional; when nil it is derived from the dates.
type CreateRequest struct {
	Project         string    `json:"project"`
	StageGates      string    `json:"stage_gates"`
	TaskType        string    `json:"task_type"`
	Frequency       Frequency `json:"frequency"`
	Priority        Priority  `json:"priority"`
	TaskDescription string    `json:"task_description"`
	AssignedTo      string    `json:"assigned_to"`
	Notes           string    `json:"notes"`
	StartDate       Date      `json:"start_date"`
	DueDate         Date      `json:"due_date"`
	EstHours        float64   `json:"est_hours"`
	Status          *Status   `json:"status,omitempty"`
	PercentComplete int       `json:"percent_complete"`
	Done            bool      `json:"done"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Project         *string    `json:"project,omitempty"`
	StageGates      *string    `json:"stage_gates,omitempty"`
	TaskType        *string    `json:"task_type,omitempty"`
	Frequency       *Frequency `json:"frequency,omitempty"`
	Priority        *Priority  `json:"priority,omitempty"`
	TaskDescription *string    `json:"task_description,omitempty"`
	AssignedTo      *string    `json:"assigned_to,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	StartDate       *Date      `json:"start_date,omitempty"`
	DueDate         *Date      `json:"due_date,omitempty"`
	EstHours        *float64   `json:"est_hours,omitempty"`
	Status          *Status    `json:"status,omitempty"`
	PercentComplete *int       `json:"percent_complete,omitempty"`
	Done            *bool      `json:"done,omitempty"`
}

// touchesDates reports whether the patch moves the start or due date.
func (p *Patch) touchesDates() bool {
	return p.StartDate != nil || p.DueDate != nil
}

// apply copies every non-nil field except Done and Status onto t. Those two
// drive lifecycle transitions and are handled by the service.
func (p *Patch) apply(t *Task) {
	if p.Project != nil {
		t.Project = *p.Project
	}
	if p.StageGates != nil {
		t.StageGates = *p.StageGates
	}
	if p.TaskType != nil {
		t.TaskType = *p.TaskType
	}
	if p.Frequency != nil {
		t.Frequency = *p.Frequency
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.TaskDescription != nil {
		t.TaskDescription = *p.TaskDescription
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.StartDate != nil {
		t.StartDate = *p.StartDate
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.EstHours != nil {
		t.EstHours = *p.EstHours
	}
	if p.PercentComplete != nil {
		t.PercentComplete = *p.PercentComplete
	}
}

// Filter selects tasks by exact match. Empty fields match everything.
type Filter struct {
	Project    string
	Priority   string
	Status     string
	Frequency  string
	StageGates string
	TaskType   string
	AssignedTo string
}

func (f Filter) Match(t *Task) bool {
	return matches(f.Project, t.Project) &&
		matches(f.Priority, string(t.Priority)) &&
		matches(f.Status, string(t.Status)) &&
		matches(f.Frequency, string(t.Frequency)) &&
		matches(f.StageGates, t.StageGates) &&
		matches(f.TaskType, t.TaskType) &&
		matches(f.AssignedTo, t.AssignedTo)
}

func matches(want, got string) bool {
	return want == "" || want == got
}

// Query is what list operations hand to the repository.
type Query struct {
	Archived bool
	Filter   Filter
	Sort     Sort
}
