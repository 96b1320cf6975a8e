package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/kazz187/tasktracker/internal/auth"
	"github.com/kazz187/tasktracker/internal/eventbus"
	"github.com/kazz187/tasktracker/pkg/cerr"
	"github.com/kazz187/tasktracker/pkg/clog"
)

const (
	defaultOperationTimeout      = 10 * time.Second
	defaultRecurrenceConcurrency = 4
)

type ServiceConfig struct {
	Policy                Policy
	OperationTimeout      time.Duration
	RecurrenceConcurrency int
}

type ServiceOption func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// Service is the task lifecycle: numbering, status derivation, done
// toggling, archiving and recurrence on top of a Repository.
type Service struct {
	repo        Repository
	numbers     *NumberAllocator
	bus         *eventbus.Bus
	policy      Policy
	timeout     time.Duration
	concurrency int
	now         func() time.Time
}

func NewService(repo Repository, bus *eventbus.Bus, cfg ServiceConfig, opts ...ServiceOption) *Service {
	s := &Service{
		repo:        repo,
		numbers:     NewNumberAllocator(repo),
		bus:         bus,
		policy:      cfg.Policy,
		timeout:     cfg.OperationTimeout,
		concurrency: cfg.RecurrenceConcurrency,
		now:         time.Now,
	}
	if s.timeout <= 0 {
		s.timeout = defaultOperationTimeout
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultRecurrenceConcurrency
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() Policy { return s.policy }

func (s *Service) today() Date { return DateOf(s.now()) }

// call runs one persistence operation under the operation timeout.
func call[T any](ctx context.Context, s *Service, target string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	v, err := fn(ctx)
	if err != nil {
		return v, cerr.WrapTimeout(target, err)
	}
	return v, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	return call(ctx, s, "task", func(ctx context.Context) (*Task, error) {
		return s.repo.Get(ctx, id)
	})
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Task, error) {
	if err := validateNewTask(&req); err != nil {
		return nil, err
	}
	return s.create(ctx, req)
}

func (s *Service) create(ctx context.Context, req CreateRequest) (*Task, error) {
	no, err := call(ctx, s, "task number", func(ctx context.Context) (int, error) {
		return s.numbers.NextNumber(ctx, req.Project)
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	t := &Task{
		Project:         req.Project,
		TaskNo:          no,
		StageGates:      req.StageGates,
		TaskType:        req.TaskType,
		Frequency:       req.Frequency,
		Priority:        req.Priority,
		TaskDescription: req.TaskDescription,
		AssignedTo:      req.AssignedTo,
		Notes:           req.Notes,
		StartDate:       req.StartDate,
		DueDate:         req.DueDate,
		EstHours:        req.EstHours,
		PercentComplete: req.PercentComplete,
	}
	setDone(t, req.Done, now, s.policy)
	t.Status = DeriveStatus(statusInputOf(t), DateOf(now), req.Status)

	if _, err := call(ctx, s, "task", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.Insert(ctx, t)
	}); err != nil {
		return nil, err
	}
	clog.AddTask(ctx, t.ID, t.Project)
	s.publish(ctx, eventbus.TaskCreated, t)
	return t, nil
}

type RecurringRequest struct {
	Template CreateRequest `json:"template"`
	Cadence  Frequency     `json:"cadence"`
	Range
}

type RecurringFailure struct {
	StartDate Date   `json:"start_date"`
	Error     string `json:"error"`
}

type RecurringResult struct {
	Created   []*Task            `json:"tasks"`
	Requested int                `json:"requested"`
	Succeeded int                `json:"succeeded"`
	Failures  []RecurringFailure `json:"failures,omitempty"`
}

// CreateRecurring creates one task per occurrence of req.Cadence in the
// range. Instances are independent: a failed one is reported and the rest
// are still created. With an atomic allocator the instances are created
// concurrently; otherwise one at a time so they do not race for numbers.
func (s *Service) CreateRecurring(ctx context.Context, req RecurringRequest) (*RecurringResult, error) {
	tmpl := req.Template
	tmpl.Frequency = req.Cadence
	if err := validateCreate(&tmpl); err != nil {
		return nil, err
	}
	reqs, err := Expand(tmpl, req.Cadence, req.Range)
	if err != nil {
		return nil, err
	}
	for i := range reqs {
		if err := validateNewTask(&reqs[i]); err != nil {
			return nil, err
		}
	}

	created := make([]*Task, len(reqs))
	errs := make([]error, len(reqs))
	if s.numbers.Atomic() {
		p := pool.New().WithMaxGoroutines(s.concurrency)
		for i, r := range reqs {
			p.Go(func() {
				created[i], errs[i] = s.create(ctx, r)
			})
		}
		p.Wait()
	} else {
		for i, r := range reqs {
			created[i], errs[i] = s.create(ctx, r)
		}
	}

	res := &RecurringResult{Requested: len(reqs), Created: make([]*Task, 0, len(reqs))}
	for i, t := range created {
		if errs[i] != nil {
			slog.WarnContext(ctx, "failed to create recurring task instance",
				"project", reqs[i].Project,
				"start_date", reqs[i].StartDate.String(),
				"error", errs[i],
			)
			res.Failures = append(res.Failures, RecurringFailure{StartDate: reqs[i].StartDate, Error: errs[i].Error()})
			continue
		}
		res.Created = append(res.Created, t)
	}
	res.Succeeded = len(res.Created)
	return res, nil
}

// Update applies patch to task id. The status is re-derived only when the
// patch touches start_date, due_date or done, or supplies a status.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Task, error) {
	if err := validatePatch(&patch); err != nil {
		return nil, err
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	oldProject := t.Project

	undone := t.Done && patch.Done != nil && !*patch.Done
	patch.apply(t)
	if patch.Done != nil {
		setDone(t, *patch.Done, now, s.policy)
	}
	// setDone owns the status of a done transition; un-done stays Not Started
	// under the default policy even when the dates move.
	rederive := patch.touchesDates() && !(undone && !s.policy.RederiveOnUndone)
	if rederive || patch.Status != nil {
		t.Status = DeriveStatus(statusInputOf(t), DateOf(now), patch.Status)
	}
	if t.Project != oldProject {
		no, err := call(ctx, s, "task number", func(ctx context.Context) (int, error) {
			return s.numbers.NextNumber(ctx, t.Project)
		})
		if err != nil {
			return nil, err
		}
		t.TaskNo = no
	}
	t.UpdatedAt = now

	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.TaskUpdated, t)
	return t, nil
}

func (s *Service) ToggleDone(ctx context.Context, id string) (*Task, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	ToggleDone(t, now, s.policy)
	t.UpdatedAt = now
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.TaskDoneToggled, t)
	return t, nil
}

func (s *Service) save(ctx context.Context, t *Task) error {
	_, err := call(ctx, s, "task", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.Update(ctx, t)
	})
	if err == nil {
		clog.AddTask(ctx, t.ID, t.Project)
	}
	return err
}

func (s *Service) Archive(ctx context.Context, id string) (*Task, error) {
	if s.policy.ArchiveRequiresDone {
		t, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !t.Done {
			return nil, cerr.NewError(cerr.FailedPrecondition, "only completed tasks can be archived", nil)
		}
	}
	return s.transition(ctx, id, ArchiveUpdate{
		To:          Archived,
		At:          s.now(),
		RequireDone: s.policy.ArchiveRequiresDone,
	}, eventbus.TaskArchived)
}

func (s *Service) Restore(ctx context.Context, id string) (*Task, error) {
	return s.transition(ctx, id, ArchiveUpdate{To: Active, At: s.now()}, eventbus.TaskRestored)
}

func (s *Service) transition(ctx context.Context, id string, u ArchiveUpdate, ev eventbus.EventType) (*Task, error) {
	t, err := call(ctx, s, "task", func(ctx context.Context) (*Task, error) {
		return s.repo.UpdateArchive(ctx, id, u)
	})
	if err != nil {
		return nil, err
	}
	clog.AddTask(ctx, t.ID, t.Project)
	s.publish(ctx, ev, t)
	return t, nil
}

// PermanentlyDelete removes an archived task and returns how many tasks were
// removed: 0 when id is active or missing.
func (s *Service) PermanentlyDelete(ctx context.Context, id string) (int, error) {
	n, err := call(ctx, s, "task", func(ctx context.Context) (int, error) {
		return s.repo.DeleteArchived(ctx, id)
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		clog.AddTask(ctx, id, "")
		if s.bus != nil {
			s.bus.PublishNew(eventbus.TaskDeleted, id, auth.UserFromContext(ctx), nil)
		}
	}
	return n, nil
}

func (s *Service) ListActive(ctx context.Context, filter Filter, sort Sort) ([]*Task, error) {
	tasks, err := s.query(ctx, Query{Filter: filter, Sort: sort})
	if err != nil {
		return nil, err
	}
	out := tasks[:0]
	for _, t := range tasks {
		if t.IsArchived {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ListArchived returns archived tasks. Rows whose archive flag and timestamp
// disagree are dropped and logged.
func (s *Service) ListArchived(ctx context.Context, sort Sort) ([]*Task, error) {
	tasks, err := s.query(ctx, Query{Archived: true, Sort: sort})
	if err != nil {
		return nil, err
	}
	out := tasks[:0]
	for _, t := range tasks {
		if !IsArchivedRecord(t) {
			slog.WarnContext(ctx, "dropping inconsistent archived task",
				"task_id", t.ID,
				"is_archived", t.IsArchived,
				"has_archived_at", t.ArchivedAt != nil,
			)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Service) query(ctx context.Context, q Query) ([]*Task, error) {
	if !q.Sort.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, "invalid sort", fmt.Errorf("sort field %q", q.Sort.Field))
	}
	return call(ctx, s, "tasks", func(ctx context.Context) ([]*Task, error) {
		return s.repo.Query(ctx, q)
	})
}

// Ping checks that the repository is reachable.
func (s *Service) Ping(ctx context.Context) error {
	_, err := call(ctx, s, "store", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.Ping(ctx)
	})
	return err
}

func (s *Service) publish(ctx context.Context, ev eventbus.EventType, t *Task) {
	if s.bus == nil {
		return
	}
	s.bus.PublishNew(ev, t.ID, auth.UserFromContext(ctx), map[string]string{
		"project": t.Project,
		"label":   t.Label(),
		"status":  string(t.Status),
	})
}
