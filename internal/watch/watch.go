package watch

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"icalfilter/internal/atomicfile"
	"icalfilter/internal/config"
	"icalfilter/internal/feed"
	appLog "icalfilter/internal/log"
	"icalfilter/internal/metrics"
)

// ConfigLoader resolves the configuration for one refresh cycle.
type ConfigLoader interface {
	Load() (*config.Config, error)
}

// Watcher keeps an output file in sync with the filtered source calendar.
type Watcher struct {
	loader  ConfigLoader
	fetcher func(cfg *config.Config) feed.Fetcher
	metrics *metrics.Metrics
}

// New creates a Watcher. m may be nil.
func New(loader ConfigLoader, fetcher func(cfg *config.Config) feed.Fetcher, m *metrics.Metrics) *Watcher {
	return &Watcher{loader: loader, fetcher: fetcher, metrics: m}
}

// Cycle runs the pipeline once and replaces the output file. On failure the
// previous file is left untouched.
func (w *Watcher) Cycle(ctx context.Context) error {
	err := w.cycle(ctx)
	w.metrics.ObserveRefresh(err)
	return err
}

func (w *Watcher) cycle(ctx context.Context) error {
	cfg, err := w.loader.Load()
	if err != nil {
		return err
	}
	if cfg.Output == "" {
		return errors.New("watch: output path is required")
	}

	res, err := feed.Run(ctx, w.fetcher(cfg), cfg)
	if err != nil {
		return err
	}
	w.metrics.ObservePipeline(res.Elapsed)
	w.metrics.ObserveEvents(res.Events, res.Diagnostics)

	if err := atomicfile.Write(cfg.Output, res.Body, 0o644); err != nil {
		return fmt.Errorf("watch: write %s: %w", cfg.Output, err)
	}
	appLog.Info("output refreshed", "output", cfg.Output, "events", res.Events)
	return nil
}

// Run performs a cycle immediately and then on every tick of schedule until
// ctx is canceled. A cycle that is still running when the next tick fires
// makes that tick a no-op. Failed cycles are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context, schedule string) error {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("watch: invalid refresh schedule %q: %w", schedule, err)
	}

	logger := cronLogger{}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))
	job := cron.FuncJob(func() {
		if err := w.Cycle(ctx); err != nil {
			appLog.Error("refresh failed", err)
		}
	})
	c.Schedule(sched, job)

	job.Run()

	c.Start()
	appLog.Info("watch started", "refresh", schedule)
	<-ctx.Done()

	<-c.Stop().Done()
	appLog.Info("watch stopped")
	return nil
}

// cronLogger routes cron's own messages through the project logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}
