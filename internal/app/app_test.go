package app

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/service"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.FromViper(config.NewViper())

	dir := t.TempDir()
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = filepath.Join(dir, "forecast.db")
	cfg.Stock.Backend = "bolt"
	cfg.Stock.Path = filepath.Join(dir, "stock.db")
	cfg.Storage.Enabled = true
	cfg.Storage.Backend = "local"
	cfg.Storage.LocalDir = filepath.Join(dir, "archive")
	cfg.Forecast.EnableHolidayEffects = false
	return cfg
}

func TestNew_WiresSqliteBoltAndLocalArchive(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Stores.Transactions)
	require.NotNil(t, a.Archive)

	var records []domain.TransactionRecord
	for d := 1; d <= 20; d++ {
		records = append(records, domain.TransactionRecord{
			ProductLine: "Electronic accessories",
			Timestamp:   fmt.Sprintf("2024-03-%02d", d),
			Quantity:    float64(4 + d%3),
		})
	}
	_, err = a.Stores.Transactions.InsertTransactions(ctx, records)
	require.NoError(t, err)

	_, err = a.Stock.IngestStockLevel(ctx, "Electronic accessories", 12)
	require.NoError(t, err)

	env, err := a.Forecast.RunAnalysis(ctx, service.RunRequest{Source: "test"})
	require.NoError(t, err)
	assert.Equal(t, 1, env.Report.Summary.TotalProducts)

	latest, err := a.Forecast.LatestReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, env.RunID, latest.RunID)

	objects, err := a.Archive.ListObjects(ctx, "reports/"+env.GeneratedAt.Format("2006/01/02"))
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func TestOpenStores(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.DatabaseConfig
		wantErr bool
		wantNil bool
	}{
		{name: "memory", cfg: config.DatabaseConfig{Driver: "memory"}, wantNil: true},
		{name: "sqlite", cfg: config.DatabaseConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "f.db")}},
		{name: "unknown", cfg: config.DatabaseConfig{Driver: "oracle"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores, err := OpenStores(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer stores.Close()
			assert.Equal(t, tt.wantNil, stores.Transactions == nil)
		})
	}
}

func TestNew_InvalidForecastConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Forecast.Workers = 0
	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
