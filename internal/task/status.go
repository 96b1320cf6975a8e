package task

import "time"

// StatusInput is the part of a task that status derivation looks at.
type StatusInput struct {
	StartDate Date
	DueDate   Date
	Done      bool
	Status    Status
}

func statusInputOf(t *Task) StatusInput {
	return StatusInput{
		StartDate: t.StartDate,
		DueDate:   t.DueDate,
		Done:      t.Done,
		Status:    t.Status,
	}
}

// DeriveStatus computes the status a task should have on day today.
//
// An explicit status always wins. A done task keeps its current status.
// Otherwise a due date before today means Overdue, a start date after today
// means Not Started, and anything else is In Progress. A zero date never
// triggers its rule.
func DeriveStatus(cur StatusInput, today Date, explicit *Status) Status {
	if explicit != nil {
		return *explicit
	}
	if cur.Done {
		return cur.Status
	}
	if !cur.DueDate.IsZero() && cur.DueDate.Before(today) {
		return StatusOverdue
	}
	if !cur.StartDate.IsZero() && cur.StartDate.After(today) {
		return StatusNotStarted
	}
	return StatusInProgress
}

// Policy holds the lifecycle switches that are configurable per deployment.
type Policy struct {
	// ArchiveRequiresDone rejects archiving tasks that are not done.
	ArchiveRequiresDone bool
	// RederiveOnUndone derives the status from the dates when a task is
	// marked not done instead of resetting it to Not Started.
	RederiveOnUndone bool
}

// ToggleDone flips t.Done and applies the matching completion fields.
func ToggleDone(t *Task, now time.Time, policy Policy) {
	setDone(t, !t.Done, now, policy)
}

// setDone moves t to done. It is a no-op when t is already in that state, so
// completed_at keeps the time of the original transition.
func setDone(t *Task, done bool, now time.Time, policy Policy) {
	if t.Done == done {
		return
	}
	t.Done = done
	if done {
		at := now
		t.CompletedAt = &at
		t.Status = StatusComplete
		t.PercentComplete = 100
		return
	}
	t.CompletedAt = nil
	t.PercentComplete = 0
	if policy.RederiveOnUndone {
		t.Status = DeriveStatus(statusInputOf(t), DateOf(now), nil)
		return
	}
	t.Status = StatusNotStarted
}
