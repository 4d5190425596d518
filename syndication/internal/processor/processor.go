// Package processor runs the scheduled-job polling loop.
//
// One Processor instance is constructed at startup with an injectable
// interval and clock; Run owns a single ticker and executes one tick at a
// time to completion. Job types are registered with handlers, and handler
// failures are isolated per job: a panic or error in one job never aborts
// the tick for the others.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkwellhq/inkwell/syndication/internal/store"
)

// ErrTerminal marks a job failure that must not be retried: the job is
// completed immediately with the error recorded. Handlers wrap it when the
// target entity disappeared or retrying cannot possibly help.
var ErrTerminal = errors.New("terminal job failure")

// Handler executes one claimed job. Return nil to complete the job, an
// ErrTerminal-wrapped error to complete it with a recorded failure, or any
// other error to reschedule with backoff until the max-attempts ceiling.
type Handler func(ctx context.Context, job *store.Job) error

// Config configures the processor.
type Config struct {
	// Interval between polling ticks. Default: 60s.
	Interval time.Duration
	// BatchSize caps how many due jobs of one type a tick picks up. Default: 50.
	BatchSize int
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
}

// Processor polls for due jobs and dispatches them to registered handlers.
type Processor struct {
	store    *store.Store
	handlers map[string]Handler
	order    []string
	config   Config
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Processor. Handlers are attached with Register before Run.
func New(st *store.Store, cfg Config, logger *slog.Logger) *Processor {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:    st,
		handlers: make(map[string]Handler),
		config:   cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// Register attaches a handler for a job type. Registration order is the
// processing order within a tick: scheduled publications are registered
// before webhook deliveries so a publish and the events it emits can land
// in the same tick.
func (p *Processor) Register(jobType string, h Handler) {
	if _, dup := p.handlers[jobType]; !dup {
		p.order = append(p.order, jobType)
	}
	p.handlers[jobType] = h
}

// SetClock overrides the time source. Test hook.
func (p *Processor) SetClock(now func() time.Time) {
	p.now = now
}

// Run executes ticks on the configured interval, once immediately at start,
// then blocks until ctx is cancelled. An in-flight tick runs to completion
// after cancellation is requested.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("processor: started", "interval", p.config.Interval)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("processor: stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick processes all due jobs, one registered type at a time.
func (p *Processor) Tick(ctx context.Context) {
	nowMs := p.now().UnixMilli()
	for _, jobType := range p.order {
		jobs, err := p.store.DueJobs(ctx, jobType, nowMs, p.config.BatchSize)
		if err != nil {
			p.logger.Error("processor: list due jobs", "job_type", jobType, "error", err)
			continue
		}
		for _, job := range jobs {
			p.runJob(ctx, job)
		}
	}
}

func (p *Processor) runJob(ctx context.Context, job *store.Job) {
	claimed, err := p.store.ClaimAttempt(ctx, job.ID, job.Attempts)
	if err != nil {
		p.logger.Error("processor: claim", "job_id", job.ID, "error", err)
		return
	}
	if !claimed {
		return // another instance won this attempt
	}
	attempt := job.Attempts + 1

	handleErr := p.safeHandle(ctx, job)
	nowMs := p.now().UnixMilli()

	switch {
	case handleErr == nil:
		if err := p.store.CompleteJob(ctx, job.ID, "", nowMs); err != nil {
			p.logger.Error("processor: complete", "job_id", job.ID, "error", err)
		}
	case errors.Is(handleErr, ErrTerminal):
		p.logger.Warn("processor: job failed terminally",
			"job_id", job.ID, "job_type", job.JobType, "attempt", attempt, "error", handleErr)
		if err := p.store.CompleteJob(ctx, job.ID, handleErr.Error(), nowMs); err != nil {
			p.logger.Error("processor: complete", "job_id", job.ID, "error", err)
		}
	case attempt >= job.MaxAttempts:
		p.logger.Warn("processor: job exhausted retries",
			"job_id", job.ID, "job_type", job.JobType, "attempts", attempt, "error", handleErr)
		if err := p.store.CompleteJob(ctx, job.ID, handleErr.Error(), nowMs); err != nil {
			p.logger.Error("processor: complete", "job_id", job.ID, "error", err)
		}
	default:
		nextAt := nowMs + Backoff(attempt).Milliseconds()
		p.logger.Warn("processor: job failed, rescheduling",
			"job_id", job.ID, "job_type", job.JobType, "attempt", attempt,
			"retry_in", Backoff(attempt), "error", handleErr)
		if err := p.store.RescheduleJob(ctx, job.ID, nextAt, handleErr.Error()); err != nil {
			p.logger.Error("processor: reschedule", "job_id", job.ID, "error", err)
		}
	}
}

// safeHandle dispatches to the handler, converting panics into errors so one
// misbehaving job cannot take down the loop.
func (p *Processor) safeHandle(ctx context.Context, job *store.Job) (err error) {
	handler, ok := p.handlers[job.JobType]
	if !ok || handler == nil {
		return fmt.Errorf("%w: no handler for job type %q", ErrTerminal, job.JobType)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

// Backoff returns the retry delay after the given attempt count:
// min(1s * 2^attempts, 1h). Non-decreasing in attempts.
func Backoff(attempts int) time.Duration {
	if attempts > 12 { // 1s << 12 > 1h already
		return time.Hour
	}
	d := time.Second << uint(attempts)
	if d > time.Hour {
		return time.Hour
	}
	return d
}
