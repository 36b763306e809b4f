// Package scheduler triggers recurring pipeline runs from a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"CivicScanner/internal/logging"
	"CivicScanner/internal/ports"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CronScheduler runs a job on a five-field cron expression (or @descriptor).
type CronScheduler struct {
	spec     string
	location *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler evaluated in loc (UTC when nil).
func NewCronScheduler(spec string, loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &CronScheduler{spec: spec, location: loc, logger: logger}
}

// Validate reports whether the expression parses.
func (c *CronScheduler) Validate() error {
	if _, err := parser.Parse(c.spec); err != nil {
		return fmt.Errorf("cron expression %q: %w", c.spec, err)
	}
	return nil
}

// Start registers job and begins ticking. Overlapping runs are skipped and
// a panicking job is recovered. The scheduler stops when ctx is done.
func (c *CronScheduler) Start(ctx context.Context, job func(context.Context)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	adapter := cronLogger{logger: c.logger}
	runner := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(c.location),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)

	if _, err := runner.AddFunc(c.spec, func() { job(ctx) }); err != nil {
		return fmt.Errorf("cron expression %q: %w", c.spec, err)
	}

	runner.Start()
	c.cron = runner
	c.logger.Info("scheduler started", "spec", c.spec, "timezone", c.location.String(), "next", c.nextLocked())

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Stop halts scheduling and waits for a running job until ctx is done.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	select {
	case <-runner.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports the next activation, zero when stopped.
func (c *CronScheduler) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextLocked()
}

func (c *CronScheduler) nextLocked() time.Time {
	if c.cron == nil {
		return time.Time{}
	}
	entries := c.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
