package scan_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/CZERTAINLY/notary-scan/internal/model"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type prober struct {
	mx    sync.Mutex
	calls []string
	fn    func(ctx context.Context, target string) (string, error)
}

func newProber(fn func(ctx context.Context, target string) (string, error)) *prober {
	return &prober{fn: fn}
}

func (p *prober) Probe(ctx context.Context, target string, _ time.Duration, _ bool) (string, error) {
	p.mx.Lock()
	p.calls = append(p.calls, target)
	p.mx.Unlock()
	return p.fn(ctx, target)
}

func (p *prober) Calls() []string {
	p.mx.Lock()
	defer p.mx.Unlock()
	return append([]string(nil), p.calls...)
}

func fingerprint(fp string) *prober {
	return newProber(func(context.Context, string) (string, error) {
		return fp, nil
	})
}

func failing(err error) *prober {
	return newProber(func(context.Context, string) (string, error) {
		return "", err
	})
}

type written struct {
	model.Observation
	// time since the store was created
	At time.Duration
}

type metric struct {
	Name   string
	Detail string
}

type store struct {
	mx           sync.Mutex
	start        time.Time
	err          error
	observations []written
	metrics      []metric
}

func newStore() *store {
	return &store{start: time.Now()}
}

func (s *store) ReportObservation(_ context.Context, serviceID, fp string) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.err != nil {
		return s.err
	}
	s.observations = append(s.observations, written{
		Observation: model.Observation{ServiceID: serviceID, Fingerprint: fp},
		At:          time.Since(s.start),
	})
	return nil
}

func (s *store) ReportMetric(_ context.Context, name, detail string) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.metrics = append(s.metrics, metric{Name: name, Detail: detail})
	return nil
}

func (s *store) Observations() []written {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]written(nil), s.observations...)
}

func (s *store) Metrics(name string) []metric {
	s.mx.Lock()
	defer s.mx.Unlock()
	var ret []metric
	for _, m := range s.metrics {
		if m.Name == name {
			ret = append(ret, m)
		}
	}
	return ret
}

type cache struct {
	mx        sync.Mutex
	destroyed []string
}

func (c *cache) Destroy(_ context.Context, key string) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.destroyed = append(c.destroyed, key)
	return nil
}

func (c *cache) Destroyed() []string {
	c.mx.Lock()
	defer c.mx.Unlock()
	return append([]string(nil), c.destroyed...)
}

func config() model.Config {
	cfg := model.DefaultConfig()
	cfg.Scan.Rate = 10
	cfg.Scan.Pace = time.Second
	cfg.Probe.Timeout = 20 * time.Second
	return cfg
}
