// Package daemon runs batches and indexing retries on cron schedules.
package daemon

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	TagBatch      = "batch"
	TagIndexRetry = "index-retry"
)

// Task is one scheduled unit of work. Its error is logged, never retried.
type Task func(ctx context.Context) error

type Daemon struct {
	cfg   config.Daemon
	sched *gocron.Scheduler
	tasks map[string]Task
}

func New(cfg config.Daemon, loc *time.Location) *Daemon {
	if loc == nil {
		loc = time.Local
	}
	return &Daemon{cfg: cfg, sched: gocron.NewScheduler(loc), tasks: map[string]Task{}}
}

// Register schedules task under tag with a five-field cron expression. An
// empty expression leaves the task disabled. Overlapping runs are skipped.
func (d *Daemon) Register(ctx context.Context, tag, expr string, task Task) error {
	if expr == "" {
		logrus.WithField("task", tag).Info("cron task disabled")
		return nil
	}
	_, err := d.sched.Cron(expr).Tag(tag).SingletonMode().Do(func() {
		d.invoke(ctx, tag, task)
	})
	if err != nil {
		return errors.Wrapf(config.ErrInvalidConfig, "cron %q for %s: %v", expr, tag, err)
	}
	d.tasks[tag] = task
	logrus.WithFields(logrus.Fields{"task": tag, "cron": expr}).Info("cron task scheduled")
	return nil
}

// RegisterDefaults schedules the batch and index retry tasks from config.
func (d *Daemon) RegisterDefaults(ctx context.Context, batch, retry Task) error {
	if err := d.Register(ctx, TagBatch, d.cfg.BatchCron, batch); err != nil {
		return err
	}
	if retry == nil {
		return nil
	}
	return d.Register(ctx, TagIndexRetry, d.cfg.IndexRetryCron, retry)
}

func (d *Daemon) invoke(ctx context.Context, tag string, task Task) {
	runID := logging.NewRunID()
	ctx = logging.WithRun(ctx, runID)
	log := logging.FromContext(ctx).WithField("task", tag)

	start := time.Now()
	log.Info("cron task started")
	if err := task(ctx); err != nil {
		log.WithError(err).Error("cron task failed")
		return
	}
	log.WithField("duration", time.Since(start).Truncate(time.Second).String()).Info("cron task finished")
}

// Trigger runs a registered task immediately on the caller's goroutine.
func (d *Daemon) Trigger(ctx context.Context, tag string) error {
	task, ok := d.tasks[tag]
	if !ok {
		return errors.Errorf("no cron task %q", tag)
	}
	d.invoke(ctx, tag, task)
	return nil
}

func (d *Daemon) Len() int { return d.sched.Len() }

// Run starts the scheduler and blocks until ctx is cancelled. With no tasks
// registered it just waits.
func (d *Daemon) Run(ctx context.Context) error {
	if d.sched.Len() > 0 {
		d.sched.StartAsync()
		logrus.WithField("tasks", d.sched.Len()).Info("daemon started")
	}
	<-ctx.Done()
	d.sched.Stop()
	logrus.Info("daemon stopped")
	return nil
}
