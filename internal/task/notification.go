package task

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

type NotificationType string

const (
	DueToday    NotificationType = "today"
	DueThisWeek NotificationType = "this_week"
)

type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

var urgencyRank = map[Urgency]int{
	UrgencyHigh:   3,
	UrgencyMedium: 2,
	UrgencyLow:    1,
}

type Notification struct {
	TaskID      string           `json:"task_id"`
	Label       string           `json:"label"`
	Description string           `json:"task_description"`
	Priority    Priority         `json:"priority"`
	DueDate     Date             `json:"due_date"`
	DaysUntil   int              `json:"days_until_due"`
	Type        NotificationType `json:"type"`
	Urgency     Urgency          `json:"urgency"`
	Text        string           `json:"text"`
}

func urgencyOf(days int, p Priority) Urgency {
	switch {
	case days <= 0:
		return UrgencyHigh
	case days <= 2 && p == PriorityHigh:
		return UrgencyHigh
	case days <= 3:
		return UrgencyMedium
	}
	return UrgencyLow
}

// DueText renders how far away a due date is.
func DueText(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("(Overdue by %s)", plural(-days, "day"))
	case days == 0:
		return "(Due Today)"
	}
	return fmt.Sprintf("(Due in %s)", plural(days, "day"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// weekOf returns the Sunday and Saturday of the week containing d.
func weekOf(d Date) (Date, Date) {
	start := d.AddDays(-int(d.Time().Weekday()))
	return start, start.AddDays(6)
}

// DueNotifications picks the open tasks due today or later in the current
// Sunday-to-Saturday week, most urgent first.
func DueNotifications(tasks []*Task, today Date) []Notification {
	_, endOfWeek := weekOf(today)
	var out []Notification
	for _, t := range tasks {
		if t.IsArchived || t.Done || t.Status == StatusComplete || t.DueDate.IsZero() {
			continue
		}
		days := today.DaysUntil(t.DueDate)
		var typ NotificationType
		switch {
		case days == 0:
			typ = DueToday
		case days > 0 && !t.DueDate.After(endOfWeek):
			typ = DueThisWeek
		default:
			continue
		}
		out = append(out, Notification{
			TaskID:      t.ID,
			Label:       t.Label(),
			Description: t.TaskDescription,
			Priority:    t.Priority,
			DueDate:     t.DueDate,
			DaysUntil:   days,
			Type:        typ,
			Urgency:     urgencyOf(days, t.Priority),
			Text:        DueText(days),
		})
	}
	slices.SortStableFunc(out, func(a, b Notification) int {
		if c := cmp.Compare(urgencyRank[b.Urgency], urgencyRank[a.Urgency]); c != 0 {
			return c
		}
		return cmp.Compare(a.DaysUntil, b.DaysUntil)
	})
	return out
}

// Notifications returns the due notifications for today across all active
// tasks.
func (s *Service) Notifications(ctx context.Context) ([]Notification, error) {
	tasks, err := s.ListActive(ctx, Filter{}, DefaultActiveSort)
	if err != nil {
		return nil, err
	}
	return DueNotifications(tasks, s.today()), nil
}
