// Package sqlite stores transactions and reports in a local SQLite file using the
// pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	product_line TEXT NOT NULL,
	sold_at      TEXT NOT NULL,
	quantity     REAL NOT NULL,
	value        REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_transactions_product_line ON transactions (product_line);

CREATE TABLE IF NOT EXISTS forecast_reports (
	run_id       TEXT PRIMARY KEY,
	generated_at INTEGER NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	report       TEXT NOT NULL
);
`

// Open opens the database file at path, creating it and the schema if needed.
func Open(path string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create sqlite directory")
	}

	db, err := sqlx.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path)))
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ensure sqlite schema")
	}
	return db, nil
}

type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) InsertTransactions(ctx context.Context, records []domain.TransactionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO transactions (product_line, sold_at, quantity, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.ProductLine, rec.Timestamp, rec.Quantity, rec.Value); err != nil {
			return 0, errors.Wrapf(err, "insert row %d", rec.Row)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit transactions")
	}
	return len(records), nil
}

func (r *TransactionRepository) ListTransactions(ctx context.Context, productLines []string) ([]domain.TransactionRecord, error) {
	query := `SELECT product_line, sold_at, quantity, value FROM transactions`
	var args []interface{}
	if len(productLines) > 0 {
		var err error
		query, args, err = sqlx.In(query+` WHERE product_line IN (?)`, productLines)
		if err != nil {
			return nil, errors.Wrap(err, "build transaction filter")
		}
	}
	query += ` ORDER BY id`

	var records []domain.TransactionRecord
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "list transactions")
	}
	for i := range records {
		records[i].Row = i + 1
	}
	return records, nil
}

type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) SaveReport(ctx context.Context, env domain.ReportEnvelope) error {
	payload, err := json.Marshal(env.Report)
	if err != nil {
		return errors.Wrap(err, "marshal report")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO forecast_reports (run_id, generated_at, source, status, report)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET
			generated_at = excluded.generated_at,
			source = excluded.source,
			status = excluded.status,
			report = excluded.report
	`, env.RunID, env.GeneratedAt.UnixNano(), env.Source, string(env.Report.Status), string(payload))
	return errors.Wrap(err, "save report")
}

func (r *ReportRepository) LatestReport(ctx context.Context) (*domain.ReportEnvelope, error) {
	var row struct {
		RunID       string `db:"run_id"`
		GeneratedAt int64  `db:"generated_at"`
		Source      string `db:"source"`
		Report      string `db:"report"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT run_id, generated_at, source, report
		FROM forecast_reports
		ORDER BY generated_at DESC
		LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "latest report")
	}

	env := &domain.ReportEnvelope{
		RunID:       row.RunID,
		GeneratedAt: time.Unix(0, row.GeneratedAt).UTC(),
		Source:      row.Source,
	}
	if err := json.Unmarshal([]byte(row.Report), &env.Report); err != nil {
		return nil, errors.Wrap(err, "decode report")
	}
	return env, nil
}
