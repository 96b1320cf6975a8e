package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kazz187/tasktracker/pkg/cerr"
)

// NumberAllocator assigns per-project task numbers.
//
// With a Counter the number comes from an atomic increment. Without one it
// falls back to reading the current maximum, which races with concurrent
// creates in the same project; the repository's uniqueness check on
// (project, task_no) turns a lost race into an AlreadyExists error.
type NumberAllocator struct {
	repo    Repository
	counter Counter
}

func NewNumberAllocator(repo Repository) *NumberAllocator {
	a := &NumberAllocator{repo: repo}
	if c, ok := repo.(Counter); ok {
		a.counter = c
	} else {
		slog.Warn("task number allocation is not atomic; concurrent creates in one project may fail with already_exists")
	}
	return a
}

// Atomic reports whether numbers come from an atomic counter.
func (a *NumberAllocator) Atomic() bool {
	return a.counter != nil
}

func (a *NumberAllocator) NextNumber(ctx context.Context, project string) (int, error) {
	if a.counter != nil {
		n, err := a.counter.NextTaskNo(ctx, project)
		if err != nil {
			return 0, allocationError(project, err)
		}
		return n, nil
	}
	max, ok, err := a.repo.MaxTaskNo(ctx, project)
	if err != nil {
		return 0, allocationError(project, err)
	}
	if !ok {
		return 1, nil
	}
	return max + 1, nil
}

func allocationError(project string, err error) error {
	if wrapped := cerr.WrapTimeout("task number", err); cerr.IsCode(wrapped, cerr.DeadlineExceeded) {
		return wrapped
	}
	return cerr.NewError(cerr.Internal, "failed to allocate task number", fmt.Errorf("project %q: %w", project, err))
}
