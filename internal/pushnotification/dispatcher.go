package pushnotification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/kazz187/tasktracker/internal/task"
)

const maxDigestLines = 5

type NotificationSource interface {
	Notifications(ctx context.Context) ([]task.Notification, error)
}

type Pusher interface {
	SendToAll(ctx context.Context, payload *NotificationPayload) int
}

// Dispatcher pushes a digest of due tasks every interval.
type Dispatcher struct {
	source   NotificationSource
	pusher   Pusher
	interval time.Duration
}

func NewDispatcher(source NotificationSource, pusher Pusher, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		source:   source,
		pusher:   pusher,
		interval: interval,
	}
}

// Start blocks until ctx is done. The first digest is sent one interval
// after start.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.interval <= 0 {
		slog.InfoContext(ctx, "push reminder dispatcher disabled")
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "push reminder dispatcher started", "interval", d.interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "push reminder dispatcher stopped")
			return
		case <-ticker.C:
			d.safeDispatch(ctx)
		}
	}
}

// safeDispatch keeps a panicking tick from taking the server down.
func (d *Dispatcher) safeDispatch(ctx context.Context) {
	var catcher panics.Catcher
	catcher.Try(func() {
		d.Dispatch(ctx)
	})
	if r := catcher.Recovered(); r != nil {
		slog.ErrorContext(ctx, "push dispatcher: digest panicked", "error", r.AsError())
	}
}

// Dispatch sends one digest and returns how many deliveries succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context) int {
	ns, err := d.source.Notifications(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "push dispatcher: failed to load notifications", "error", err)
		return 0
	}
	payload := Digest(ns)
	if payload == nil {
		return 0
	}
	sent := d.pusher.SendToAll(ctx, payload)
	slog.InfoContext(ctx, "push reminder digest sent", "tasks", len(ns), "deliveries", sent)
	return sent
}

// Digest summarizes ns into one payload, or nil when nothing is due.
func Digest(ns []task.Notification) *NotificationPayload {
	if len(ns) == 0 {
		return nil
	}
	var today int
	for _, n := range ns {
		if n.Type == task.DueToday {
			today++
		}
	}

	lines := make([]string, 0, maxDigestLines+1)
	for i, n := range ns {
		if i == maxDigestLines {
			lines = append(lines, fmt.Sprintf("and %d more", len(ns)-maxDigestLines))
			break
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", n.Label, n.Description, n.Text))
	}

	title := fmt.Sprintf("%d task(s) due this week", len(ns))
	if today > 0 {
		title = fmt.Sprintf("%d task(s) due today, %d this week", today, len(ns)-today)
	}
	return &NotificationPayload{
		Title: title,
		Body:  strings.Join(lines, "\n"),
		URL:   "/notifications",
		Tag:   "due-reminder",
	}
}
