package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/notary-scan/internal/log"
	"github.com/CZERTAINLY/notary-scan/internal/model"
	"github.com/CZERTAINLY/notary-scan/internal/probe"
	"github.com/CZERTAINLY/notary-scan/internal/stats"
)

// probe is a single probe task. The dispatcher has already registered it in
// the stats, the task unregisters itself whatever happens.
func (r *run) probe(ctx context.Context, target model.Target, ticket stats.Ticket) {
	defer r.stats.End(ticket)
	ctx = log.ContextAttrs(ctx, slog.String("target", target.ID))
	defer func() {
		if rec := recover(); rec != nil {
			r.stats.Fail(model.CategoryOther)
			slog.ErrorContext(ctx, "probe panicked", "panic", fmt.Sprint(rec))
		}
	}()

	timeout := r.cfg.Probe.Timeout
	sni := r.cfg.Probe.SNI

	fp, err := r.primary.Probe(ctx, target.Address, timeout, sni)
	if err != nil && r.fallback != nil {
		slog.InfoContext(ctx, "probe failed, trying fallback", "error", err)
		fp, err = r.fallback.Probe(ctx, target.Address, timeout, sni)
	}

	r.record(ctx, target, fp, err)
}

func (r *run) record(ctx context.Context, target model.Target, fp string, err error) {
	if err == nil && fp != "" {
		r.buffer.Add(model.Observation{
			ServiceID:   target.ID,
			Fingerprint: fp,
			ObservedAt:  time.Now(),
		})
		slog.DebugContext(ctx, "observed", "fingerprint", fp)
		if r.cache != nil {
			if cerr := r.cache.Destroy(ctx, target.ID); cerr != nil {
				slog.WarnContext(ctx, "cache invalidation failed", "error", cerr)
			}
		}
		return
	}

	if err == nil {
		// nothing to report as a metric, the prober has already logged why
		r.stats.Fail(model.CategorySocketError)
		return
	}

	category := probe.Classify(err)
	r.stats.Fail(category)
	r.metric(ctx, model.MetricScanFailure, err.Error())
	if category == model.CategoryOther {
		slog.ErrorContext(ctx, "unknown error scanning", "error", err)
		return
	}
	slog.ErrorContext(ctx, "error scanning", "category", category.String(), "error", err)
}
