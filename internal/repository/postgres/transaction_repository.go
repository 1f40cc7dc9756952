package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) InsertTransactions(ctx context.Context, records []domain.TransactionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transactions (product_line, sold_at, quantity, value)
			VALUES ($1, $2, $3, $4)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx, rec.ProductLine, rec.Timestamp, rec.Quantity, rec.Value); err != nil {
				return fmt.Errorf("insert row %d: %w", rec.Row, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "insert transactions")
	}
	return inserted, nil
}

func (r *TransactionRepository) ListTransactions(ctx context.Context, productLines []string) ([]domain.TransactionRecord, error) {
	query := `
		SELECT product_line, sold_at, quantity, value
		FROM transactions
	`
	var args []interface{}
	if len(productLines) > 0 {
		query += " WHERE product_line = ANY($1::text[])"
		args = append(args, pq.Array(productLines))
	}
	query += " ORDER BY id"

	var records []domain.TransactionRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, errors.Wrap(err, "list transactions")
	}
	for i := range records {
		records[i].Row = i + 1
	}
	return records, nil
}
