package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/tasktracker/internal/task"
	"github.com/kazz187/tasktracker/pkg/cerr"
)

const uniqueViolation = "23505"

// PgRepository is a PostgreSQL-backed task repository. It implements
// task.Counter, so numbers are handed out by an atomic upsert on
// task_counters.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// EnsureSchema creates the tables and indexes if they don't exist.
func (r *PgRepository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id               TEXT PRIMARY KEY,
			project          TEXT NOT NULL,
			task_no          INTEGER NOT NULL CHECK (task_no > 0),
			stage_gates      TEXT NOT NULL DEFAULT '',
			task_type        TEXT NOT NULL DEFAULT '',
			frequency        TEXT NOT NULL,
			priority         TEXT NOT NULL,
			task_description TEXT NOT NULL,
			assigned_to      TEXT NOT NULL DEFAULT 'none',
			notes            TEXT NOT NULL DEFAULT '',
			start_date       DATE,
			due_date         DATE,
			est_hours        DOUBLE PRECISION NOT NULL DEFAULT 0,
			status           TEXT NOT NULL,
			percent_complete INTEGER NOT NULL DEFAULT 0 CHECK (percent_complete BETWEEN 0 AND 100),
			done             BOOLEAN NOT NULL DEFAULT FALSE,
			completed_at     TIMESTAMPTZ,
			is_archived      BOOLEAN NOT NULL DEFAULT FALSE,
			archived_at      TIMESTAMPTZ,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (is_archived = (archived_at IS NOT NULL))
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_project_task_no ON tasks(project, task_no)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_archived ON tasks(is_archived)`,
		`CREATE TABLE IF NOT EXISTS task_counters (
			project TEXT PRIMARY KEY,
			last_no INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const taskColumns = `id, project, task_no, stage_gates, task_type, frequency, priority,
	task_description, assigned_to, notes, start_date, due_date, est_hours, status,
	percent_complete, done, completed_at, is_archived, archived_at, created_at, updated_at`

func scanTask(row pgx.Row) (*task.Task, error) {
	var (
		t          task.Task
		start, due *time.Time
	)
	err := row.Scan(&t.ID, &t.Project, &t.TaskNo, &t.StageGates, &t.TaskType, &t.Frequency, &t.Priority,
		&t.TaskDescription, &t.AssignedTo, &t.Notes, &start, &due, &t.EstHours, &t.Status,
		&t.PercentComplete, &t.Done, &t.CompletedAt, &t.IsArchived, &t.ArchivedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if start != nil {
		t.StartDate = task.DateOf(*start)
	}
	if due != nil {
		t.DueDate = task.DateOf(*due)
	}
	return &t, nil
}

func dateArg(d task.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time()
}

func pgError(target string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("%s already exists", target), err)
	}
	if wrapped := cerr.WrapTimeout(target, err); cerr.IsCode(wrapped, cerr.DeadlineExceeded) {
		return wrapped
	}
	return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("%s: %w", target, err))
}

// NextTaskNo increments the project's counter and returns the new value. The
// counter is seeded from the highest existing task_no the first time a
// project is seen.
func (r *PgRepository) NextTaskNo(ctx context.Context, project string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO task_counters (project, last_no)
		VALUES ($1, COALESCE((SELECT MAX(task_no) FROM tasks WHERE project = $1), 0) + 1)
		ON CONFLICT (project) DO UPDATE SET last_no = task_counters.last_no + 1
		RETURNING last_no`, project).Scan(&n)
	if err != nil {
		return 0, pgError("task counter", err)
	}
	return n, nil
}

func (r *PgRepository) MaxTaskNo(ctx context.Context, project string) (int, bool, error) {
	var max *int
	err := r.pool.QueryRow(ctx, `SELECT MAX(task_no) FROM tasks WHERE project = $1`, project).Scan(&max)
	if err != nil {
		return 0, false, pgError("task number", err)
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

func (r *PgRepository) Insert(ctx context.Context, t *task.Task) error {
	now := time.Now().Truncate(time.Microsecond)
	t.ID = ulid.Make().String()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		t.ID, t.Project, t.TaskNo, t.StageGates, t.TaskType, t.Frequency, t.Priority,
		t.TaskDescription, t.AssignedTo, t.Notes, dateArg(t.StartDate), dateArg(t.DueDate), t.EstHours, t.Status,
		t.PercentComplete, t.Done, t.CompletedAt, t.IsArchived, t.ArchivedAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return pgError("task "+t.Label(), err)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cerr.NewError(cerr.NotFound, "task not found", err)
	}
	if err != nil {
		return nil, pgError("task", err)
	}
	return t, nil
}

func (r *PgRepository) Update(ctx context.Context, t *task.Task) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET
			project = $2, task_no = $3, stage_gates = $4, task_type = $5, frequency = $6,
			priority = $7, task_description = $8, assigned_to = $9, notes = $10,
			start_date = $11, due_date = $12, est_hours = $13, status = $14,
			percent_complete = $15, done = $16, completed_at = $17, updated_at = $18
		WHERE id = $1`,
		t.ID, t.Project, t.TaskNo, t.StageGates, t.TaskType, t.Frequency,
		t.Priority, t.TaskDescription, t.AssignedTo, t.Notes,
		dateArg(t.StartDate), dateArg(t.DueDate), t.EstHours, t.Status,
		t.PercentComplete, t.Done, t.CompletedAt, t.UpdatedAt)
	if err != nil {
		return pgError("task "+t.Label(), err)
	}
	if tag.RowsAffected() == 0 {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return nil
}

func (r *PgRepository) UpdateArchive(ctx context.Context, id string, u task.ArchiveUpdate) (*task.Task, error) {
	var (
		query string
		args  []any
	)
	if u.To == task.Archived {
		query = `UPDATE tasks SET is_archived = TRUE, archived_at = $2, updated_at = $2
			WHERE id = $1 AND is_archived = FALSE AND (done OR NOT $3)
			RETURNING ` + taskColumns
		args = []any{id, u.At, u.RequireDone}
	} else {
		query = `UPDATE tasks SET is_archived = FALSE, archived_at = NULL, updated_at = $2
			WHERE id = $1 AND is_archived = TRUE
			RETURNING ` + taskColumns
		args = []any{id, u.At}
	}
	t, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, archiveMiss(u)
	}
	if err != nil {
		return nil, pgError("task", err)
	}
	return t, nil
}

func (r *PgRepository) DeleteArchived(ctx context.Context, id string) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND is_archived = TRUE`, id)
	if err != nil {
		return 0, pgError("task", err)
	}
	return int(tag.RowsAffected()), nil
}

// orderBy maps a sort onto SQL. Only whitelisted fields reach this point.
func orderBy(s task.Sort) string {
	col := string(s.Field)
	if s.Field == task.SortPriority {
		col = `CASE priority WHEN 'High' THEN 0 WHEN 'Medium' THEN 1 WHEN 'Low' THEN 2 ELSE 3 END`
	}
	dir := "ASC NULLS FIRST"
	if s.Desc {
		dir = "DESC NULLS LAST"
	}
	return fmt.Sprintf("%s %s, project ASC, task_no ASC", col, dir)
}

func (r *PgRepository) Query(ctx context.Context, q task.Query) ([]*task.Task, error) {
	if !q.Sort.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, "invalid sort", fmt.Errorf("sort field %q", q.Sort.Field))
	}
	where := []string{"is_archived = $1"}
	args := []any{q.Archived}
	for _, c := range []struct {
		col, val string
	}{
		{"project", q.Filter.Project},
		{"priority", q.Filter.Priority},
		{"status", q.Filter.Status},
		{"frequency", q.Filter.Frequency},
		{"stage_gates", q.Filter.StageGates},
		{"task_type", q.Filter.TaskType},
		{"assigned_to", q.Filter.AssignedTo},
	} {
		if c.val == "" {
			continue
		}
		args = append(args, c.val)
		where = append(where, fmt.Sprintf("%s = $%d", c.col, len(args)))
	}
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY %s`,
		taskColumns, strings.Join(where, " AND "), orderBy(q.Sort))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, pgError("tasks", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, pgError("tasks", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("tasks", err)
	}
	return tasks, nil
}

func (r *PgRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return pgError("database", err)
	}
	return nil
}
