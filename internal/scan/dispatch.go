package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/notary-scan/internal/feed"
)

func (r *run) dispatch(ctx context.Context, lines []string) error {
	rate := r.cfg.Scan.Rate
	every := r.cfg.Scan.StragglerEvery

	for _, line := range lines {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		target, err := feed.Parse(line)
		if err != nil {
			slog.ErrorContext(ctx, "skipping target", "error", err)
			continue
		}
		if !target.IsTLS(r.cfg.Scan.ServiceType) {
			continue
		}

		ticket := r.stats.Begin(target.ID)
		if err := r.group.Go(ctx, func() { r.probe(ctx, target, ticket) }); err != nil {
			r.stats.Abort(ticket)
			return ErrInterrupted
		}

		started := r.stats.Started()
		if started%rate == 0 {
			if err := r.pause(ctx); err != nil {
				return err
			}
			r.flush(ctx)
			slog.InfoContext(ctx, "rate",
				"elapsed", time.Since(r.start).Round(time.Second).String(),
				"stats", r.stats.Snapshot(),
			)
		}
		if every > 0 && started%every == 0 && r.cfg.Service.Verbose {
			r.logStragglers(ctx)
		}
	}
	return nil
}

func (r *run) pause(ctx context.Context) error {
	timer := time.NewTimer(r.cfg.Scan.Pace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ErrInterrupted
	case <-timer.C:
		return nil
	}
}

func (r *run) logStragglers(ctx context.Context) {
	stragglers := r.stats.Stragglers(r.cfg.Scan.StragglerAge)
	slog.InfoContext(ctx, "long running probes", "count", len(stragglers))
	for _, s := range stragglers {
		slog.InfoContext(ctx, "long running probe", "target", s.ID, "age", s.Age.String())
	}
}

// drain waits up to twice the probe timeout for running probes, then
// flushes what they produced so far. Probes still running are abandoned.
func (r *run) drain(ctx context.Context) error {
	deadline := 2 * r.cfg.Probe.Timeout
	done, err := r.group.Wait(ctx, deadline)
	if err != nil {
		return ErrInterrupted
	}
	if !done {
		r.abandoned = r.stats.Active()
		slog.WarnContext(ctx, "giving up on running probes", "active", r.abandoned, "waited", deadline.String())
		if r.cfg.Service.Verbose {
			r.logStragglers(ctx)
		}
	}

	r.flush(ctx)
	slog.InfoContext(ctx, "scan finished",
		"elapsed", time.Since(r.start).Round(time.Second).String(),
		"stats", r.stats.Snapshot(),
	)
	return nil
}
