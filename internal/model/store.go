package model

import (
	"context"
	"time"
)

// metric names reported to a Store
const (
	MetricScanStart   = "ServiceScanStart"
	MetricScanStop    = "ServiceScanStop"
	MetricScanFailure = "ServiceScanFailure"
)

// Prober gets the fingerprint of a target. An empty fingerprint with a nil
// error means the probe produced nothing, but already reported why.
type Prober interface {
	Probe(ctx context.Context, target string, timeout time.Duration, sni bool) (string, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, target string, timeout time.Duration, sni bool) (string, error)

func (f ProberFunc) Probe(ctx context.Context, target string, timeout time.Duration, sni bool) (string, error) {
	return f(ctx, target, timeout, sni)
}

// Store persists observations and run metrics.
type Store interface {
	ReportObservation(ctx context.Context, serviceID, fingerprint string) error
	ReportMetric(ctx context.Context, name, detail string) error
}

type StoreCloser interface {
	Store
	Close() error
}

// Cache holds per-service answers of a notary server, which must be
// invalidated once a fresh observation arrives.
type Cache interface {
	Destroy(ctx context.Context, key string) error
}

type CacheCloser interface {
	Cache
	Close() error
}
