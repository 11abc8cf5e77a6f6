package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"satqm/internal/rrd"
)

// Writer applies completion events to the per-product series files under
// Dir, creating a series on first sight of a product.
type Writer struct {
	Dir    string
	Step   time.Duration
	Logger *slog.Logger

	mu   sync.Mutex
	open map[string]*rrd.Database
}

func NewWriter(dir string, step time.Duration, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{Dir: dir, Step: step, Logger: logger, open: map[string]*rrd.Database{}}
}

func (w *Writer) Apply(ctx context.Context, ev Event) error {
	db, err := w.database(ctx, ev.Product)
	if err != nil {
		return err
	}
	if err := db.Update(ctx, ev.SlotTime, ev.Latency()); err != nil {
		return err
	}
	w.Logger.Debug("series updated",
		"product", ev.Product, "slot", ev.SlotTime, "latency_seconds", ev.Latency())
	return nil
}

func (w *Writer) database(ctx context.Context, product string) (*rrd.Database, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if db, ok := w.open[product]; ok {
		return db, nil
	}
	db, err := rrd.Create(ctx, filepath.Join(w.Dir, product+".rrd"), w.Step, nil)
	if err != nil {
		return nil, err
	}
	w.open[product] = db
	return db, nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	for name, db := range w.open {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(w.open, name)
	}
	return firstErr
}
