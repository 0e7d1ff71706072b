package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"response_analytics/config"
	"response_analytics/internal/pipeline"
	"response_analytics/internal/schedule"
	"response_analytics/internal/store"
	"response_analytics/internal/watch"
	"response_analytics/metrics"
	"response_analytics/queue"
)

const (
	queueCapacity = 4
	stopTimeout   = 30 * time.Second
)

// App wires the report pipeline to its triggers.
type App struct {
	cfg     config.Config
	store   *store.Store
	metrics *metrics.Metrics
	queue   *queue.Queue
	steps   []pipeline.Step
	out     io.Writer
	onRun   func(*pipeline.Result, error)
}

func New(cfg config.Config, out io.Writer) (*App, error) {
	a := &App{
		cfg:     cfg,
		metrics: metrics.New(),
		steps:   pipeline.BuildRegistry(cfg),
		out:     out,
	}
	if cfg.PersistRuns {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if err := st.Health(context.Background()); err != nil {
			st.Close()
			return nil, fmt.Errorf("store health: %w", err)
		}
		a.store = st
	}
	a.queue = queue.New(queueCapacity, 1, time.Duration(cfg.JobTimeoutSec)*time.Second)
	a.queue.SetObserver(a.metrics)
	return a, nil
}

// RunOnce executes the pipeline synchronously.
func (a *App) RunOnce(ctx context.Context, trigger string) (*pipeline.Result, error) {
	exec := pipeline.ExecutionContext{Cfg: a.cfg, Store: a.store, Metrics: a.metrics, Out: a.out}
	res, err := pipeline.Execute(ctx, exec, a.steps, trigger)
	if a.onRun != nil {
		a.onRun(res, err)
	}
	return res, err
}

// Trigger queues a run. Triggers of the same kind that are already waiting are coalesced.
func (a *App) Trigger(trigger string) bool {
	return a.queue.Enqueue(queue.Job{
		ID:      uuid.NewString(),
		Trigger: trigger,
		Work: func(ctx context.Context) error {
			_, err := a.RunOnce(ctx, trigger)
			return err
		},
	})
}

// Run executes one run at startup, then re-runs on input changes and on the
// configured schedule until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.queue.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		a.queue.Stop(stopCtx)
	}()

	if a.cfg.WatchInputs {
		w := watch.New([]string{a.cfg.SubmissionsPath, a.cfg.ResponsesPath}, watch.DefaultDebounce, func(string) {
			a.Trigger("watch")
		})
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watch inputs: %w", err)
		}
	}
	if a.cfg.Schedule != "" {
		s, err := schedule.New(a.cfg.Schedule, a.cfg.Location, func(time.Time) {
			a.Trigger("schedule")
		})
		if err != nil {
			return err
		}
		s.Start(ctx)
	}

	a.Trigger("startup")
	log.Printf("app: running watch=%t schedule=%q", a.cfg.WatchInputs, a.cfg.Schedule)
	<-ctx.Done()
	return nil
}

// History returns the most recent runs, newest first.
func (a *App) History(ctx context.Context, limit int) ([]store.Run, error) {
	if a.store == nil {
		return nil, fmt.Errorf("run history requires PERSIST_RUNS")
	}
	return a.store.ListRuns(ctx, limit)
}

// RunLog returns the log lines recorded for one run.
func (a *App) RunLog(ctx context.Context, id string) (*store.Run, []string, error) {
	if a.store == nil {
		return nil, nil, fmt.Errorf("run history requires PERSIST_RUNS")
	}
	run, err := a.store.GetRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, fmt.Errorf("run %s not found", id)
	}
	lines, err := a.store.RunLogs(ctx, id)
	return run, lines, err
}

func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
