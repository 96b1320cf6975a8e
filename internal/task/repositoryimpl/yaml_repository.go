package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/kazz187/tasktracker/internal/task"
	"github.com/kazz187/tasktracker/pkg/cerr"
	"github.com/kazz187/tasktracker/pkg/storage"
)

const (
	tasksPrefix    = "tasks"
	countersPrefix = "counters"
)

// YAMLRepository stores one YAML document per task in a storage.Storage.
// It has no atomic counter, so task numbers are allocated by reading the
// current maximum. Writes are serialized within the process; the
// (project, task_no) check in Insert runs under the same lock. A per-project
// high-water mark under counters/ keeps numbers of deleted tasks from being
// handed out again.
type YAMLRepository struct {
	storage storage.Storage
	mu      sync.Mutex
	now     func() time.Time
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s, now: time.Now}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", tasksPrefix, id)
}

func counterPath(project string) string {
	return fmt.Sprintf("%s/%s.yaml", countersPrefix, url.PathEscape(project))
}

type counter struct {
	Project string `yaml:"project"`
	LastNo  int    `yaml:"last_no"`
}

// highWater returns the largest task_no ever stored for project.
func (r *YAMLRepository) highWater(ctx context.Context, project string) (int, error) {
	data, err := r.storage.Read(ctx, counterPath(project))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, cerr.WrapStorageReadError("task counter", err)
	}
	var c counter
	if err := yaml.Unmarshal(data, &c); err != nil {
		return 0, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal task counter: %w", err))
	}
	return c.LastNo, nil
}

func (r *YAMLRepository) raiseHighWater(ctx context.Context, project string, no int) error {
	cur, err := r.highWater(ctx, project)
	if err != nil {
		return err
	}
	if no <= cur {
		return nil
	}
	data, err := yaml.Marshal(&counter{Project: project, LastNo: no})
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal task counter: %w", err))
	}
	if err := r.storage.Write(ctx, counterPath(project), data); err != nil {
		return cerr.WrapStorageWriteError("task counter", err)
	}
	return nil
}

func (r *YAMLRepository) read(ctx context.Context, p string) (*task.Task, error) {
	data, err := r.storage.Read(ctx, p)
	if err != nil {
		return nil, cerr.WrapStorageReadError("task", err)
	}
	var t task.Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal task %s: %w", p, err))
	}
	return &t, nil
}

func (r *YAMLRepository) write(ctx context.Context, t *task.Task) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal task: %w", err))
	}
	if err := r.storage.Write(ctx, path(t.ID), data); err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	return nil
}

// all loads every task. Unreadable documents are skipped and logged.
func (r *YAMLRepository) all(ctx context.Context) ([]*task.Task, error) {
	paths, err := r.storage.List(ctx, tasksPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("tasks", err)
	}
	sort.Strings(paths)

	tasks := make([]*task.Task, 0, len(paths))
	for _, p := range paths {
		t, err := r.read(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, cerr.WrapTimeout("tasks", ctx.Err())
			}
			slog.WarnContext(ctx, "skipping unreadable task", "path", p, "error", err)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r *YAMLRepository) MaxTaskNo(ctx context.Context, project string) (int, bool, error) {
	tasks, err := r.all(ctx)
	if err != nil {
		return 0, false, err
	}
	max, ok := 0, false
	for _, t := range tasks {
		if t.Project == project && (!ok || t.TaskNo > max) {
			max, ok = t.TaskNo, true
		}
	}
	mark, err := r.highWater(ctx, project)
	if err != nil {
		return 0, false, err
	}
	if mark > max {
		max, ok = mark, true
	}
	return max, ok, nil
}

func (r *YAMLRepository) Insert(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, err := r.all(ctx)
	if err != nil {
		return err
	}
	for _, existing := range tasks {
		if existing.Project == t.Project && existing.TaskNo == t.TaskNo {
			return cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("task number %s is already taken", t.Label()), nil)
		}
	}
	mark, err := r.highWater(ctx, t.Project)
	if err != nil {
		return err
	}
	if t.TaskNo <= mark {
		return cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("task number %s was already used", t.Label()), nil)
	}

	now := r.now()
	t.ID = ulid.Make().String()
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := r.write(ctx, t); err != nil {
		return err
	}
	return r.raiseHighWater(ctx, t.Project, t.TaskNo)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	return r.read(ctx, path(id))
}

// Update replaces the stored task. The archive fields are owned by
// UpdateArchive, so they are carried over from the stored copy rather than
// taken from t.
func (r *YAMLRepository) Update(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.read(ctx, path(t.ID))
	if err != nil {
		return err
	}
	t.IsArchived = stored.IsArchived
	t.ArchivedAt = stored.ArchivedAt

	tasks, err := r.all(ctx)
	if err != nil {
		return err
	}
	for _, other := range tasks {
		if other.ID != t.ID && other.Project == t.Project && other.TaskNo == t.TaskNo {
			return cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("task number %s is already taken", t.Label()), nil)
		}
	}
	if err := r.write(ctx, t); err != nil {
		return err
	}
	return r.raiseHighWater(ctx, t.Project, t.TaskNo)
}

func (r *YAMLRepository) UpdateArchive(ctx context.Context, id string, u task.ArchiveUpdate) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.read(ctx, path(id))
	if cerr.IsCode(err, cerr.NotFound) || (err == nil && !u.Applies(t)) {
		return nil, archiveMiss(u)
	}
	if err != nil {
		return nil, err
	}
	u.Apply(t)
	if err := r.write(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func archiveMiss(u task.ArchiveUpdate) error {
	if u.To == task.Archived {
		return cerr.NewError(cerr.NotFound, "task not found or already archived", nil)
	}
	return cerr.NewError(cerr.NotFound, "task not found or not archived", nil)
}

func (r *YAMLRepository) DeleteArchived(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.read(ctx, path(id))
	if cerr.IsCode(err, cerr.NotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !t.IsArchived {
		return 0, nil
	}
	if err := r.storage.Delete(ctx, path(id)); err != nil {
		if cerr.IsCode(cerr.WrapStorageDeleteError("task", err), cerr.NotFound) {
			return 0, nil
		}
		return 0, cerr.WrapStorageDeleteError("task", err)
	}
	return 1, nil
}

func (r *YAMLRepository) Query(ctx context.Context, q task.Query) ([]*task.Task, error) {
	tasks, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	out := tasks[:0]
	for _, t := range tasks {
		if t.IsArchived != q.Archived || !q.Filter.Match(t) {
			continue
		}
		out = append(out, t)
	}
	task.SortTasks(out, q.Sort)
	return out, nil
}

func (r *YAMLRepository) Ping(ctx context.Context) error {
	if _, err := r.storage.List(ctx, tasksPrefix); err != nil {
		return cerr.WrapStorageReadError("tasks", err)
	}
	return nil
}
