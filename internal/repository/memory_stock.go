package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

// MemoryStockStore is a process-local StockStore.
type MemoryStockStore struct {
	mu        sync.RWMutex
	levels    map[string]domain.StockLevel
	stockouts []domain.StockoutEvent
}

func NewMemoryStockStore() *MemoryStockStore {
	return &MemoryStockStore{levels: make(map[string]domain.StockLevel)}
}

func (s *MemoryStockStore) SetStockLevel(_ context.Context, level domain.StockLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[level.ProductLine] = level
	return nil
}

func (s *MemoryStockStore) StockLevels(_ context.Context) ([]domain.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockLevel, 0, len(s.levels))
	for _, l := range s.levels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductLine < out[j].ProductLine })
	return out, nil
}

func (s *MemoryStockStore) RecordStockout(_ context.Context, event domain.StockoutEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stockouts = append(s.stockouts, event)
	return nil
}

func (s *MemoryStockStore) Stockouts(_ context.Context) ([]domain.StockoutEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SortStockouts(append([]domain.StockoutEvent(nil), s.stockouts...)), nil
}

func (s *MemoryStockStore) Close() error { return nil }

// SortStockouts orders events by time, then product line.
func SortStockouts(events []domain.StockoutEvent) []domain.StockoutEvent {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.Before(events[j].OccurredAt)
		}
		return events[i].ProductLine < events[j].ProductLine
	})
	return events
}
