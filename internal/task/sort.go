package task

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

type SortField string

const (
	SortTaskNo     SortField = "task_no"
	SortProject    SortField = "project"
	SortPriority   SortField = "priority"
	SortStatus     SortField = "status"
	SortStartDate  SortField = "start_date"
	SortDueDate    SortField = "due_date"
	SortCreatedAt  SortField = "created_at"
	SortUpdatedAt  SortField = "updated_at"
	SortArchivedAt SortField = "archived_at"

	SortTaskDescription SortField = "task_description"
)

var sortFields = []SortField{
	SortTaskNo, SortProject, SortPriority, SortStatus, SortStartDate,
	SortDueDate, SortCreatedAt, SortUpdatedAt, SortArchivedAt, SortTaskDescription,
}

type Sort struct {
	Field SortField
	Desc  bool
}

var (
	DefaultActiveSort   = Sort{Field: SortDueDate}
	DefaultArchivedSort = Sort{Field: SortArchivedAt, Desc: true}
)

// ParseSort reads the sortBy/sortOrder query pair. Empty values fall back to
// the default for the listing; unknown fields are rejected so they can never
// reach a query.
func ParseSort(field, order string, archived bool) (Sort, error) {
	s := DefaultActiveSort
	if archived {
		s = DefaultArchivedSort
	}
	if field != "" {
		f := SortField(field)
		if !slices.Contains(sortFields, f) {
			return Sort{}, fmt.Errorf("unknown sort field %q", field)
		}
		s.Field = f
	}
	switch strings.ToLower(order) {
	case "":
	case "asc":
		s.Desc = false
	case "desc":
		s.Desc = true
	default:
		return Sort{}, fmt.Errorf("unknown sort order %q", order)
	}
	return s, nil
}

func (s Sort) Valid() bool {
	return slices.Contains(sortFields, s.Field)
}

var priorityRank = map[Priority]int{
	PriorityHigh:   0,
	PriorityMedium: 1,
	PriorityLow:    2,
}

// Compare orders two tasks by s. Ties break on project and task_no so the
// order is total.
func (s Sort) Compare(a, b *Task) int {
	c := s.compareField(a, b)
	if s.Desc {
		c = -c
	}
	if c != 0 {
		return c
	}
	if c := cmp.Compare(a.Project, b.Project); c != 0 {
		return c
	}
	return cmp.Compare(a.TaskNo, b.TaskNo)
}

func (s Sort) compareField(a, b *Task) int {
	switch s.Field {
	case SortTaskNo:
		return cmp.Compare(a.TaskNo, b.TaskNo)
	case SortProject:
		return cmp.Compare(a.Project, b.Project)
	case SortPriority:
		return cmp.Compare(rankOf(a.Priority), rankOf(b.Priority))
	case SortStatus:
		return cmp.Compare(a.Status, b.Status)
	case SortTaskDescription:
		return cmp.Compare(a.TaskDescription, b.TaskDescription)
	case SortStartDate:
		return a.StartDate.Compare(b.StartDate)
	case SortDueDate:
		return a.DueDate.Compare(b.DueDate)
	case SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case SortArchivedAt:
		return comparePtrTime(a.ArchivedAt, b.ArchivedAt)
	}
	return 0
}

func rankOf(p Priority) int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// nil sorts first.
func comparePtrTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

// SortTasks sorts ts in place.
func SortTasks(ts []*Task, s Sort) {
	slices.SortStableFunc(ts, s.Compare)
}
