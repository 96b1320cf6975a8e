package cerr

import (
	"context"
	"errors"
	"fmt"

	"github.com/kazz187/tasktracker/pkg/storage"
)

func WrapStorageReadError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	if wrapped, ok := wrapDeadline(target, err); ok {
		return wrapped
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to read %s: %w", target, err))
}

func WrapStorageWriteError(target string, err error) error {
	if wrapped, ok := wrapDeadline(target, err); ok {
		return wrapped
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to write %s: %w", target, err))
}

func WrapStorageDeleteError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	if wrapped, ok := wrapDeadline(target, err); ok {
		return wrapped
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to delete %s: %w", target, err))
}

// WrapTimeout converts an expired deadline into DeadlineExceeded. Callers must
// treat the outcome of the operation as unknown. Other errors pass through.
func WrapTimeout(target string, err error) error {
	if wrapped, ok := wrapDeadline(target, err); ok {
		return wrapped
	}
	return err
}

func wrapDeadline(target string, err error) (error, bool) {
	if !errors.Is(err, context.DeadlineExceeded) {
		return nil, false
	}
	var cErr *Error
	if errors.As(err, &cErr) && cErr.Code == DeadlineExceeded {
		return err, true
	}
	return NewError(DeadlineExceeded, fmt.Sprintf("%s operation timed out; outcome unknown", target), err), true
}
