// Package stats aggregates the progress of a scan run.
//
// A single Stats value is shared by the dispatcher, every probe task and the
// drain. All operations take one lock, so each Snapshot satisfies
// Active == Started - Completed.
package stats

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/CZERTAINLY/notary-scan/internal/model"
)

// Ticket identifies a running task in the in-flight registry. Target lines
// may repeat, so the registry is not keyed by the target itself.
type Ticket uint64

type inflight struct {
	id      string
	started time.Time
}

type Stats struct {
	mx         sync.Mutex
	now        func() time.Time
	started    int
	completed  int
	failures   int
	categories map[model.Category]int
	nextTicket Ticket
	inflight   map[Ticket]inflight
}

// Snapshot is a consistent copy of the counters
type Snapshot struct {
	Started    int
	Completed  int
	Active     int
	Failures   int
	Categories map[model.Category]int
}

// Straggler is an in-flight probe running for too long
type Straggler struct {
	ID  string
	Age time.Duration
}

func New() *Stats {
	return &Stats{
		now:        time.Now,
		categories: make(map[model.Category]int, len(model.Categories)),
		inflight:   make(map[Ticket]inflight),
	}
}

// Begin registers a task for target id: started and active grow by one and
// the start time is recorded.
func (s *Stats) Begin(id string) Ticket {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.started++
	s.nextTicket++
	t := s.nextTicket
	s.inflight[t] = inflight{id: id, started: s.now()}
	return t
}

// End unregisters a task. It is idempotent, so ending a ticket twice does not
// break the counters.
func (s *Stats) End(t Ticket) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if _, ok := s.inflight[t]; !ok {
		return
	}
	delete(s.inflight, t)
	s.completed++
}

// Abort unregisters a task which was never started, as if Begin was not
// called at all.
func (s *Stats) Abort(t Ticket) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if _, ok := s.inflight[t]; !ok {
		return
	}
	delete(s.inflight, t)
	s.started--
}

// Fail tallies one failed probe
func (s *Stats) Fail(c model.Category) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.failures++
	s.categories[c]++
}

func (s *Stats) Started() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.started
}

func (s *Stats) Active() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return len(s.inflight)
}

func (s *Stats) Snapshot() Snapshot {
	s.mx.Lock()
	defer s.mx.Unlock()
	cats := make(map[model.Category]int, len(model.Categories))
	for _, c := range model.Categories {
		cats[c] = s.categories[c]
	}
	return Snapshot{
		Started:    s.started,
		Completed:  s.completed,
		Active:     len(s.inflight),
		Failures:   s.failures,
		Categories: cats,
	}
}

// Stragglers returns in-flight tasks older than age, the oldest first.
func (s *Stats) Stragglers(age time.Duration) []Straggler {
	s.mx.Lock()
	now := s.now()
	var ret []Straggler
	for _, f := range s.inflight {
		if d := now.Sub(f.started); d > age {
			ret = append(ret, Straggler{ID: f.id, Age: d})
		}
	}
	s.mx.Unlock()

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Age > ret[j].Age
	})
	return ret
}

// LogValue prints the per category breakdown
func (s Snapshot) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 5+len(model.Categories))
	attrs = append(attrs,
		slog.Int("started", s.Started),
		slog.Int("completed", s.Completed),
		slog.Int("active", s.Active),
		slog.Int("failures", s.Failures),
	)
	details := make([]slog.Attr, 0, len(model.Categories))
	for _, c := range model.Categories {
		details = append(details, slog.Int(c.String(), s.Categories[c]))
	}
	attrs = append(attrs, slog.GroupAttrs("details", details...))
	return slog.GroupValue(attrs...)
}
