package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocron "github.com/go-co-op/gocron/v2"
)

// Job is a single scheduled run
type Job func(ctx context.Context) error

type Supervisor struct {
	scheduler gocron.Scheduler
	job       Job
	start     chan struct{}
	running   chan struct{}
	wg        sync.WaitGroup
	runs      chan error
}

// NewSupervisor schedules job with a cron expression.
func NewSupervisor(ctx context.Context, cronExpr string, job Job) (*Supervisor, error) {
	if job == nil {
		return nil, errors.New("job is nil")
	}
	s := &Supervisor{
		job:     job,
		start:   make(chan struct{}, 1),
		running: make(chan struct{}, 1),
	}
	scheduler, err := newScheduler(ctx, cronExpr, s.Start)
	if err != nil {
		return nil, err
	}
	s.scheduler = scheduler
	return s, nil
}

// Start asks for a new run. It never blocks, more requests before the loop
// picks them up collapse into one.
func (s *Supervisor) Start() {
	select {
	case s.start <- struct{}{}:
	default:
	}
}

// Runs returns a channel receiving the result of each finished run. It must
// be called before Do. Nobody reading it blocks the supervisor.
func (s *Supervisor) Runs() <-chan error {
	s.runs = make(chan error, 16)
	return s.runs
}

// Do runs the supervisor event loop until ctx is canceled.
// Startup: starts the scheduler.
// Shutdown (deferred order): wait on the running job -> scheduler shutdown.
func (s *Supervisor) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a supervisor")
	s.scheduler.Start()
	defer func() {
		if err := s.scheduler.Shutdown(); err != nil {
			slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
		}
	}()
	defer s.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.start:
			select {
			case s.running <- struct{}{}:
			default:
				slog.WarnContext(ctx, "previous scan is still running: skipping")
				continue
			}
			s.wg.Go(func() {
				defer func() { <-s.running }()
				s.run(ctx)
			})
		}
	}
}

func (s *Supervisor) run(ctx context.Context) {
	start := time.Now()
	slog.InfoContext(ctx, "scheduled scan started")
	err := s.job(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "scheduled scan failed", "error", err, "elapsed", time.Since(start).String())
	} else {
		slog.InfoContext(ctx, "scheduled scan finished", "elapsed", time.Since(start).String())
	}
	if s.runs != nil {
		select {
		case s.runs <- err:
		default:
		}
	}
}

func newScheduler(ctx context.Context, expr string, startFunc func()) (gocron.Scheduler, error) {
	schedule, err := ParseCron(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing service.cron: %w", err)
	}
	slog.DebugContext(ctx, "successfully parsed", "cron", expr, "next", schedule.Next(time.Now()).String())

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(startFunc),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	return s, nil
}
