package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/notary-scan/internal/batch"
	"github.com/CZERTAINLY/notary-scan/internal/log"
	"github.com/CZERTAINLY/notary-scan/internal/model"
	"github.com/CZERTAINLY/notary-scan/internal/parallel"
	"github.com/CZERTAINLY/notary-scan/internal/stats"

	"github.com/google/uuid"
)

// ErrInterrupted is returned when the run was stopped by a canceled context.
var ErrInterrupted = errors.New("scan interrupted")

// Scanner probes the TLS services of a target list, records their
// fingerprints and invalidates stale cache entries. A Scanner can be used
// for more runs, each run starts with fresh counters.
type Scanner struct {
	cfg      model.Config
	primary  model.Prober
	fallback model.Prober
	store    model.Store
	cache    model.Cache
	out      io.Writer
}

type Option func(*Scanner)

// WithFallback sets a prober to be run when the primary one returns an error.
func WithFallback(p model.Prober) Option {
	return func(s *Scanner) {
		s.fallback = p
	}
}

// WithCache enables cache invalidation on successful probes.
func WithCache(c model.Cache) Option {
	return func(s *Scanner) {
		s.cache = c
	}
}

// WithOutput sets where the start and end banners are printed.
func WithOutput(w io.Writer) Option {
	return func(s *Scanner) {
		s.out = w
	}
}

func New(cfg model.Config, primary model.Prober, store model.Store, opts ...Option) *Scanner {
	s := &Scanner{
		cfg:     cfg,
		primary: primary,
		store:   store,
		out:     io.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary describes a finished (or interrupted) run.
type Summary struct {
	RunID     uuid.UUID
	Started   int
	Completed int
	Failures  int
	Flushes   int
	Abandoned int
	Elapsed   time.Duration
	Stats     stats.Snapshot
}

// Do runs one scan of the lines in their order:
// 1. lines which are not TLS services are skipped, malformed ones are logged
// 2. every TLS service is probed in its own goroutine, at most MaxInFlight at once
// 3. every Rate dispatched probes the dispatch pauses and flushes the results
// 4. after the dispatch it waits at most 2x probe timeout for running probes
// 5. remaining results are flushed, the running probes are abandoned
//
// ErrInterrupted is returned if ctx is canceled during the dispatch or the drain.
func (s *Scanner) Do(ctx context.Context, lines []string) (Summary, error) {
	r := s.newRun()
	ctx = log.ContextAttrs(ctx, slog.String("run", r.id.String()))

	_, _ = fmt.Fprintf(s.out, "Starting scan of %d service-ids at: %s\n", len(lines), r.start.Format(time.ANSIC))
	_, _ = fmt.Fprintf(s.out, "INFO: *** Timeout = %s  Scans-per-second = %d\n", s.cfg.Probe.Timeout, s.cfg.Scan.Rate)
	r.metric(ctx, model.MetricScanStart, fmt.Sprintf("ServiceCount: %d", len(lines)))

	if err := r.dispatch(ctx, lines); err != nil {
		slog.WarnContext(ctx, "scan interrupted during dispatch", "stats", r.stats.Snapshot())
		return r.summary(), err
	}

	if err := r.drain(ctx); err != nil {
		slog.WarnContext(ctx, "scan interrupted during drain", "stats", r.stats.Snapshot())
		return r.summary(), err
	}

	sum := r.summary()
	_, _ = fmt.Fprintf(s.out, "Ending scan at: %s\n", time.Now().Format(time.ANSIC))
	_, _ = fmt.Fprintf(s.out, "Scan of %d services took %d seconds.  %d Failures\n",
		sum.Started, int(sum.Elapsed.Seconds()), sum.Failures)
	r.metric(ctx, model.MetricScanStop, "")
	return sum, nil
}

// run holds the state shared by the dispatcher, the probe tasks and the drain
// of a single Do call.
type run struct {
	*Scanner
	id      uuid.UUID
	start   time.Time
	stats   *stats.Stats
	buffer  *batch.Buffer
	flusher *batch.Flusher
	group   *parallel.Group
	flushes int
	// abandoned is only written by the drain
	abandoned int
}

func (s *Scanner) newRun() *run {
	buffer := batch.NewBuffer()
	return &run{
		Scanner: s,
		id:      uuid.New(),
		start:   time.Now(),
		stats:   stats.New(),
		buffer:  buffer,
		flusher: batch.NewFlusher(buffer, s.store),
		group:   parallel.NewGroup(s.cfg.Scan.MaxInFlight),
	}
}

func (r *run) flush(ctx context.Context) batch.Result {
	r.flushes++
	return r.flusher.Flush(ctx)
}

func (r *run) metric(ctx context.Context, name, detail string) {
	if err := r.store.ReportMetric(ctx, name, detail); err != nil {
		slog.WarnContext(ctx, "failed to report metric", "metric", name, "error", err)
	}
}

func (r *run) summary() Summary {
	snap := r.stats.Snapshot()
	return Summary{
		RunID:     r.id,
		Started:   snap.Started,
		Completed: snap.Completed,
		Failures:  snap.Failures,
		Flushes:   r.flushes,
		Abandoned: r.abandoned,
		Elapsed:   time.Since(r.start),
		Stats:     snap,
	}
}
