package repository

import (
	"context"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

// TransactionRepository stores the historical transaction feed.
type TransactionRepository interface {
	// InsertTransactions appends records and returns how many were written.
	InsertTransactions(ctx context.Context, records []domain.TransactionRecord) (int, error)
	// ListTransactions returns the feed, restricted to productLines when non-empty.
	ListTransactions(ctx context.Context, productLines []string) ([]domain.TransactionRecord, error)
}

// ReportRepository persists analysis reports.
type ReportRepository interface {
	SaveReport(ctx context.Context, env domain.ReportEnvelope) error
	// LatestReport returns domain.ErrNotFound when no report has been saved.
	LatestReport(ctx context.Context) (*domain.ReportEnvelope, error)
}

// StockStore keeps current stock levels and stockout events between runs.
type StockStore interface {
	SetStockLevel(ctx context.Context, level domain.StockLevel) error
	StockLevels(ctx context.Context) ([]domain.StockLevel, error)
	RecordStockout(ctx context.Context, event domain.StockoutEvent) error
	Stockouts(ctx context.Context) ([]domain.StockoutEvent, error)
	Close() error
}
