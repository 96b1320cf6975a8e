package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	server "github.com/kazz187/tasktracker/internal"
	"github.com/kazz187/tasktracker/internal/config"
	"github.com/kazz187/tasktracker/internal/event"
	"github.com/kazz187/tasktracker/internal/eventbus"
	"github.com/kazz187/tasktracker/internal/fieldconfig"
	"github.com/kazz187/tasktracker/internal/pushnotification"
	pushsubrepo "github.com/kazz187/tasktracker/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/tasktracker/internal/task"
	taskrepo "github.com/kazz187/tasktracker/internal/task/repositoryimpl"
	"github.com/kazz187/tasktracker/pkg/clog"
)

const shutdownTimeout = 10 * time.Second

var (
	app = kingpin.New("tasktracker", "Project task tracker with recurring tasks and archiving")

	serveCmd = app.Command("serve", "Start the HTTP API server").Default()

	migrateCmd = app.Command("migrate", "Create the PostgreSQL schema")

	previewCmd     = app.Command("preview", "Print the occurrences a recurring task would create")
	previewCadence = previewCmd.Flag("cadence", "Daily, Weekly, Monthly or Yearly").Required().Enum(
		string(task.FrequencyDaily), string(task.FrequencyWeekly), string(task.FrequencyMonthly), string(task.FrequencyYearly))
	previewStart = previewCmd.Flag("start", "First day of the range (YYYY-MM-DD)").Required().String()
	previewEnd   = previewCmd.Flag("end", "Last day of the range (YYYY-MM-DD)").Required().String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	var err error
	switch command {
	case previewCmd.FullCommand():
		err = runPreview(*previewCadence, *previewStart, *previewEnd)
	case migrateCmd.FullCommand():
		err = withEnv(runMigrate)
	case serveCmd.FullCommand():
		err = withEnv(runServe)
	}
	if err != nil {
		slog.Error(command+" failed", "error", err)
		os.Exit(1)
	}
}

func withEnv(run func(*config.Env) error) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	setupLogger(env)
	return run(env)
}

func setupLogger(env *config.Env) {
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))
}

func runPreview(cadence, start, end string) error {
	from, err := task.ParseDate(start)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	to, err := task.ParseDate(end)
	if err != nil {
		return fmt.Errorf("invalid --end: %w", err)
	}
	dates, err := task.Occurrences(task.Frequency(cadence), task.Range{Start: from, End: to})
	if err != nil {
		return err
	}
	fmt.Printf("%d occurrence(s)\n", len(dates))
	for _, d := range dates {
		fmt.Println(d.String())
	}
	return nil
}

func runMigrate(env *config.Env) error {
	ctx := context.Background()
	if env.StorageEnv.Type != "postgres" {
		return errors.New("migrate requires TASKTRACKER_STORAGE_TYPE=postgres")
	}
	pool, err := newPgPool(ctx, &env.StorageEnv)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := taskrepo.NewPgRepository(pool).EnsureSchema(ctx); err != nil {
		return err
	}
	slog.Info("schema is up to date")
	return nil
}

func runServe(env *config.Env) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	stores, err := openStores(ctx, &env.StorageEnv)
	if err != nil {
		return err
	}
	defer stores.Close()

	bus := eventbus.New()

	lifecycle := config.LifecycleEnvFromEnv(env)
	svc := task.NewService(stores.tasks, bus, task.ServiceConfig{
		Policy: task.Policy{
			ArchiveRequiresDone: lifecycle.ArchiveRequiresDone,
			RederiveOnUndone:    lifecycle.RederiveOnUndone,
		},
		OperationTimeout:      lifecycle.OperationTimeout,
		RecurrenceConcurrency: lifecycle.RecurrenceConcurrency,
	})

	fields, err := fieldconfig.NewStore(env.FieldConfigEnv.Path, bus)
	if err != nil {
		return err
	}

	pushSubRepo := pushsubrepo.NewYAMLRepository(stores.blobs)
	vapidEnv := config.VAPIDEnvFromEnv(env)
	pushSender := pushnotification.NewSender(vapidEnv, pushSubRepo)
	pushDispatcher := pushnotification.NewDispatcher(svc, pushSender, vapidEnv.ReminderInterval)

	srv := server.NewServer(
		env,
		svc,
		task.NewServer(svc),
		fieldconfig.NewServer(fields),
		event.NewServer(bus),
		pushnotification.NewServer(vapidEnv, pushSubRepo, pushSender),
	)

	go func() {
		if err := fields.Watch(ctx); err != nil {
			slog.Error("field config watcher stopped", "error", err)
		}
	}()
	if pushSender.Configured() {
		go pushDispatcher.Start(ctx)
	}

	return serve(ctx, srv)
}

type httpServer interface {
	ListenAndServe(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// serve runs srv until ctx is cancelled or the listener fails. A listener
// failure is returned after the server has been shut down.
func serve(ctx context.Context, srv httpServer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			errCh <- err
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	shutdownErr := srv.Shutdown(shutdownCtx)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	default:
		return shutdownErr
	}
}
