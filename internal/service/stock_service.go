package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/repository"
	"github.com/andresuchdata/autopo-py/forecast-go/pkg/logger"
)

// StockService applies stock-level updates and stockout notifications. Changes are
// only seen by runs that start after them, since a run reads one Snapshot up front.
type StockService struct {
	store repository.StockStore
	now   func() time.Time
	log   zerolog.Logger
}

func NewStockService(store repository.StockStore) *StockService {
	if store == nil {
		store = repository.NewMemoryStockStore()
	}
	return &StockService{
		store: store,
		now:   time.Now,
		log:   logger.Component("stock"),
	}
}

func (s *StockService) IngestStockLevel(ctx context.Context, productLine string, quantity int) (domain.StockLevel, error) {
	productLine = strings.TrimSpace(productLine)
	if productLine == "" {
		return domain.StockLevel{}, fmt.Errorf("%w: product line is required", domain.ErrInvalidInput)
	}
	if quantity < 0 {
		return domain.StockLevel{}, fmt.Errorf("%w: stock quantity must be >= 0, got %d", domain.ErrInvalidInput, quantity)
	}

	level := domain.StockLevel{ProductLine: productLine, Quantity: quantity, UpdatedAt: s.now().UTC()}
	if err := s.store.SetStockLevel(ctx, level); err != nil {
		return domain.StockLevel{}, err
	}

	s.log.Debug().Str("product_line", productLine).Int("quantity", quantity).Msg("stock level updated")
	return level, nil
}

// NotifyStockout records the event and drops the line's stock level to zero.
func (s *StockService) NotifyStockout(ctx context.Context, productLine, note string) (domain.StockoutEvent, error) {
	productLine = strings.TrimSpace(productLine)
	if productLine == "" {
		return domain.StockoutEvent{}, fmt.Errorf("%w: product line is required", domain.ErrInvalidInput)
	}

	at := s.now().UTC()
	event := domain.StockoutEvent{ProductLine: productLine, OccurredAt: at, Note: note}
	if err := s.store.RecordStockout(ctx, event); err != nil {
		return domain.StockoutEvent{}, err
	}
	if err := s.store.SetStockLevel(ctx, domain.StockLevel{ProductLine: productLine, UpdatedAt: at}); err != nil {
		return domain.StockoutEvent{}, err
	}

	s.log.Warn().Str("product_line", productLine).Msg("stockout recorded")
	return event, nil
}

// Snapshot returns the current stock level of every known line.
func (s *StockService) Snapshot(ctx context.Context) (map[string]int, error) {
	levels, err := s.store.StockLevels(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]int, len(levels))
	for _, l := range levels {
		snapshot[l.ProductLine] = l.Quantity
	}
	return snapshot, nil
}

func (s *StockService) Levels(ctx context.Context) ([]domain.StockLevel, error) {
	return s.store.StockLevels(ctx)
}

func (s *StockService) Stockouts(ctx context.Context) ([]domain.StockoutEvent, error) {
	return s.store.Stockouts(ctx)
}
