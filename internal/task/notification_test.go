package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDueNotifications(t *testing.T) {
	// Wednesday; the week runs Sunday 2024-03-10 to Saturday 2024-03-16.
	today := NewDate(2024, time.March, 13)
	archivedAt := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	tasks := []*Task{
		{ID: "today", Project: "OPS", TaskNo: 1, Priority: PriorityLow, DueDate: today},
		{ID: "friday-high", Project: "OPS", TaskNo: 2, Priority: PriorityHigh, DueDate: today.AddDays(2)},
		{ID: "saturday", Project: "OPS", TaskNo: 12, Priority: PriorityLow, DueDate: today.AddDays(3)},
		{ID: "next-week", Project: "OPS", TaskNo: 4, DueDate: today.AddDays(5)},
		{ID: "overdue", Project: "OPS", TaskNo: 5, DueDate: today.AddDays(-1)},
		{ID: "done", Project: "OPS", TaskNo: 6, DueDate: today, Done: true},
		{ID: "complete", Project: "OPS", TaskNo: 7, DueDate: today, Status: StatusComplete},
		{ID: "archived", Project: "OPS", TaskNo: 8, DueDate: today, IsArchived: true, ArchivedAt: &archivedAt},
		{ID: "no-due", Project: "OPS", TaskNo: 9},
	}

	got := DueNotifications(tasks, today)
	require.Len(t, got, 3)

	assert.Equal(t, "today", got[0].TaskID)
	assert.Equal(t, DueToday, got[0].Type)
	assert.Equal(t, UrgencyHigh, got[0].Urgency)
	assert.Equal(t, "(Due Today)", got[0].Text)
	assert.Equal(t, "OPS-001", got[0].Label)

	assert.Equal(t, "friday-high", got[1].TaskID)
	assert.Equal(t, DueThisWeek, got[1].Type)
	assert.Equal(t, UrgencyHigh, got[1].Urgency)
	assert.Equal(t, "(Due in 2 days)", got[1].Text)

	assert.Equal(t, "saturday", got[2].TaskID)
	assert.Equal(t, UrgencyMedium, got[2].Urgency)
	assert.Equal(t, "OPS-012", got[2].Label)
}

func TestUrgencyOf(t *testing.T) {
	tests := []struct {
		days     int
		priority Priority
		want     Urgency
	}{
		{-3, PriorityLow, UrgencyHigh},
		{0, PriorityLow, UrgencyHigh},
		{2, PriorityHigh, UrgencyHigh},
		{2, PriorityMedium, UrgencyMedium},
		{3, PriorityHigh, UrgencyMedium},
		{4, PriorityHigh, UrgencyLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, urgencyOf(tt.days, tt.priority), "days=%d priority=%s", tt.days, tt.priority)
	}
}

func TestDueText(t *testing.T) {
	assert.Equal(t, "(Overdue by 1 day)", DueText(-1))
	assert.Equal(t, "(Overdue by 4 days)", DueText(-4))
	assert.Equal(t, "(Due Today)", DueText(0))
	assert.Equal(t, "(Due in 1 day)", DueText(1))
	assert.Equal(t, "(Due in 6 days)", DueText(6))
}
