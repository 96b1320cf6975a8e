package repositoryimpl

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/tasktracker/internal/task"
	"github.com/kazz187/tasktracker/pkg/cerr"
)

// newPgRepo connects to TASKTRACKER_TEST_DATABASE_URL. Tests are skipped
// when it is unset.
func newPgRepo(t *testing.T) *PgRepository {
	t.Helper()
	url := os.Getenv("TASKTRACKER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TASKTRACKER_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	r := NewPgRepository(pool)
	require.NoError(t, r.EnsureSchema(ctx))
	return r
}

func TestPgRepository_NextTaskNoIsAtomic(t *testing.T) {
	ctx := context.Background()
	r := newPgRepo(t)
	project := "T" + ulid.Make().String()

	const n = 20
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got = map[int]bool{}
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			no, err := r.NextTaskNo(ctx, project)
			assert.NoError(t, err)
			mu.Lock()
			got[no] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, got, n)
	for i := 1; i <= n; i++ {
		assert.True(t, got[i], "missing %d", i)
	}
}

func TestPgRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	r := newPgRepo(t)
	project := "T" + ulid.Make().String()
	now := time.Now().UTC().Truncate(time.Microsecond)

	tk := &task.Task{
		Project:         project,
		TaskNo:          1,
		TaskDescription: "rotate keys",
		Frequency:       task.FrequencyAdhoc,
		Priority:        task.PriorityHigh,
		AssignedTo:      task.Unassigned,
		Status:          task.StatusInProgress,
		StartDate:       task.NewDate(2024, time.March, 1),
	}
	require.NoError(t, r.Insert(ctx, tk))
	assert.True(t, cerr.IsCode(r.Insert(ctx, &task.Task{Project: project, TaskNo: 1, TaskDescription: "dup",
		Frequency: task.FrequencyAdhoc, Priority: task.PriorityLow, Status: task.StatusInProgress}), cerr.AlreadyExists))

	got, err := r.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.StartDate, got.StartDate)
	assert.True(t, got.DueDate.IsZero())

	_, err = r.UpdateArchive(ctx, tk.ID, task.ArchiveUpdate{To: task.Archived, At: now, RequireDone: true})
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	archived, err := r.UpdateArchive(ctx, tk.ID, task.ArchiveUpdate{To: task.Archived, At: now})
	require.NoError(t, err)
	assert.True(t, task.IsArchivedRecord(archived))

	list, err := r.Query(ctx, task.Query{Archived: true, Filter: task.Filter{Project: project}, Sort: task.DefaultArchivedSort})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err := r.DeleteArchived(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = r.Get(ctx, tk.ID)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}
