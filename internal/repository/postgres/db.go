package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
)

const defaultMaxConcurrentTx = 10

type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

var (
	dbInstance *DB
	once       sync.Once
)

// ConnString builds a lib/pq keyword/value connection string.
func ConnString(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// NewDB creates the process-wide connection pool and makes sure the schema exists.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	var err error
	once.Do(func() {
		var db *sqlx.DB
		db, err = sqlx.Connect("postgres", ConnString(cfg))
		if err != nil {
			err = errors.Wrap(err, "connect postgres")
			return
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		dbInstance = Wrap(db, cfg.MaxConcurrentTx)
		err = dbInstance.EnsureSchema(context.Background())
	})

	return dbInstance, err
}

// Wrap adds transaction throttling to an open pool.
func Wrap(db *sqlx.DB, maxConcurrentTx int64) *DB {
	if maxConcurrentTx <= 0 {
		maxConcurrentTx = defaultMaxConcurrentTx
	}
	return &DB{DB: db, sem: semaphore.NewWeighted(maxConcurrentTx)}
}

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id           BIGSERIAL PRIMARY KEY,
	product_line TEXT NOT NULL,
	sold_at      TEXT NOT NULL,
	quantity     DOUBLE PRECISION NOT NULL,
	value        DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_product_line ON transactions (product_line);

CREATE TABLE IF NOT EXISTS forecast_reports (
	run_id       TEXT PRIMARY KEY,
	generated_at TIMESTAMPTZ NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	report       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_forecast_reports_generated_at ON forecast_reports (generated_at DESC);
`

// EnsureSchema creates the tables used by the repositories.
func (db *DB) EnsureSchema(ctx context.Context) error {
	return EnsureSchema(ctx, db.DB.DB)
}

// EnsureSchema creates the tables on a plain database/sql handle, such as the
// pgx stdlib pool used for bulk loading.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "ensure postgres schema")
	}
	return nil
}

// WithTx executes a function within a transaction
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx.Tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}
