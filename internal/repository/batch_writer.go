package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

// FlushFunc writes one batch and returns the number of rows stored.
type FlushFunc func(ctx context.Context, records []domain.TransactionRecord) (int64, error)

// BatchWriterConfig bounds how much a BatchWriter buffers before flushing.
type BatchWriterConfig struct {
	BatchRows     int
	FlushInterval time.Duration
}

// DefaultBatchWriterConfig suits bulk loads of retail exports.
func DefaultBatchWriterConfig() BatchWriterConfig {
	return BatchWriterConfig{BatchRows: 5000, FlushInterval: 30 * time.Second}
}

// BatchWriter buffers transaction records from many files and flushes them in batches.
type BatchWriter struct {
	cfg       BatchWriterConfig
	flush     FlushFunc
	mu        sync.Mutex
	buffer    []domain.TransactionRecord
	lastFlush time.Time
	written   int64
	batches   int
}

func NewBatchWriter(cfg BatchWriterConfig, flush FlushFunc) *BatchWriter {
	if cfg.BatchRows <= 0 {
		cfg.BatchRows = DefaultBatchWriterConfig().BatchRows
	}
	return &BatchWriter{
		cfg:       cfg,
		flush:     flush,
		buffer:    make([]domain.TransactionRecord, 0, cfg.BatchRows),
		lastFlush: time.Now(),
	}
}

// Add buffers records, flushing when the row or time threshold is reached.
func (w *BatchWriter) Add(ctx context.Context, records []domain.TransactionRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buffer = append(w.buffer, records...)

	shouldFlush := len(w.buffer) >= w.cfg.BatchRows ||
		(w.cfg.FlushInterval > 0 && time.Since(w.lastFlush) >= w.cfg.FlushInterval)
	if shouldFlush {
		return w.flushLocked(ctx)
	}
	return nil
}

// Finalize flushes whatever is left.
func (w *BatchWriter) Finalize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

// flushLocked must be called with w.mu held.
func (w *BatchWriter) flushLocked(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}

	n, err := w.flush(ctx, w.buffer)
	if err != nil {
		return fmt.Errorf("flush %d rows: %w", len(w.buffer), err)
	}

	w.written += n
	w.batches++
	w.buffer = w.buffer[:0]
	w.lastFlush = time.Now()
	return nil
}

// Stats reports rows written, batches flushed and rows still buffered.
func (w *BatchWriter) Stats() (written int64, batches, buffered int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, w.batches, len(w.buffer)
}
