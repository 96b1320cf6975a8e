package task

import "time"

type ArchiveState int

const (
	Active ArchiveState = iota
	Archived
)

func (s ArchiveState) String() string {
	if s == Archived {
		return "archived"
	}
	return "active"
}

func StateOf(t *Task) ArchiveState {
	if t.IsArchived {
		return Archived
	}
	return Active
}

// ArchiveUpdate is a conditional archive-state transition. Repositories
// apply it only to a task that is currently in the opposite state, and in
// the same write.
type ArchiveUpdate struct {
	To          ArchiveState
	At          time.Time
	RequireDone bool
}

// From is the state a task must be in for the update to apply.
func (u ArchiveUpdate) From() ArchiveState {
	if u.To == Archived {
		return Active
	}
	return Archived
}

// Applies reports whether u's precondition holds for t.
func (u ArchiveUpdate) Applies(t *Task) bool {
	if StateOf(t) != u.From() {
		return false
	}
	if u.To == Archived && u.RequireDone && !t.Done {
		return false
	}
	return true
}

// Apply moves t to u.To. Callers check Applies first.
func (u ArchiveUpdate) Apply(t *Task) {
	if u.To == Archived {
		at := u.At
		t.IsArchived = true
		t.ArchivedAt = &at
	} else {
		t.IsArchived = false
		t.ArchivedAt = nil
	}
	t.UpdatedAt = u.At
}

// IsArchivedRecord reports whether t is a well-formed archived task: the flag
// and the timestamp must agree.
func IsArchivedRecord(t *Task) bool {
	return t.IsArchived && t.ArchivedAt != nil
}
