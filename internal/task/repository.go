package task

import "context"

type Repository interface {
	// MaxTaskNo returns the highest task_no used in project, archived tasks
	// included. ok is false when the project has no tasks yet.
	MaxTaskNo(ctx context.Context, project string) (max int, ok bool, err error)
	// Insert stores a new task. It fails with AlreadyExists when another
	// task already holds (project, task_no).
	Insert(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	Update(ctx context.Context, t *Task) error
	// UpdateArchive applies u to task id only if its precondition holds, in
	// a single conditional write. When no task matches it fails with
	// NotFound.
	UpdateArchive(ctx context.Context, id string, u ArchiveUpdate) (*Task, error)
	// DeleteArchived removes task id if it is archived and returns the
	// number of removed tasks.
	DeleteArchived(ctx context.Context, id string) (int, error)
	Query(ctx context.Context, q Query) ([]*Task, error)
	Ping(ctx context.Context) error
}

// Counter is implemented by repositories that can hand out task numbers
// atomically.
type Counter interface {
	NextTaskNo(ctx context.Context, project string) (int, error)
}
