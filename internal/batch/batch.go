// Package batch buffers successful observations between flushes.
package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/CZERTAINLY/notary-scan/internal/log"
	"github.com/CZERTAINLY/notary-scan/internal/model"
)

// Buffer collects observations from concurrent probe tasks.
type Buffer struct {
	mx    sync.Mutex
	items []model.Observation
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Add(o model.Observation) {
	b.mx.Lock()
	b.items = append(b.items, o)
	b.mx.Unlock()
}

// Swap returns everything collected so far and leaves the buffer empty. An
// Add running concurrently lands either in the returned batch or in the next
// one, never in both and never nowhere.
func (b *Buffer) Swap() []model.Observation {
	b.mx.Lock()
	items := b.items
	b.items = nil
	b.mx.Unlock()
	return items
}

func (b *Buffer) Len() int {
	b.mx.Lock()
	defer b.mx.Unlock()
	return len(b.items)
}

// Result describes one flush
type Result struct {
	Size    int
	Written int
	Err     error
}

// Flusher drains a Buffer into a Store.
type Flusher struct {
	buffer *Buffer
	store  model.Store
}

func NewFlusher(buffer *Buffer, store model.Store) *Flusher {
	return &Flusher{buffer: buffer, store: store}
}

// Flush writes the current batch. The first failing write stops the flush
// and the whole batch is dropped: observations are not retried nor put back.
func (f *Flusher) Flush(ctx context.Context) Result {
	items := f.buffer.Swap()
	res := Result{Size: len(items)}
	if len(items) == 0 {
		return res
	}

	start := time.Now()
	for _, o := range items {
		if err := f.store.ReportObservation(ctx, o.ServiceID, o.Fingerprint); err != nil {
			res.Err = err
			slog.Log(ctx, log.LevelCritical, "store error: failed to write batch, dropping it",
				"size", res.Size,
				"written", res.Written,
				"error", err,
			)
			return res
		}
		res.Written++
	}
	slog.DebugContext(ctx, "batch flushed", "size", res.Size, "elapsed", time.Since(start).String())
	return res
}
