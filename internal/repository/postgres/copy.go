package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

var transactionColumns = []string{"product_line", "sold_at", "quantity", "value"}

// CopyTransactions bulk loads records with COPY. db must be opened with the pgx
// stdlib driver (sql.Open("pgx", url)).
func CopyTransactions(ctx context.Context, db *sql.DB, records []domain.TransactionRecord) (int64, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "acquire connection")
	}
	defer conn.Close()

	var copied int64
	err = conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("copy requires the pgx driver, got %T", driverConn)
		}

		copied, err = sc.Conn().CopyFrom(ctx,
			pgx.Identifier{"transactions"},
			transactionColumns,
			pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
				rec := records[i]
				return []any{rec.ProductLine, rec.Timestamp, rec.Quantity, rec.Value}, nil
			}),
		)
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "copy transactions")
	}
	return copied, nil
}
