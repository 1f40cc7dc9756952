package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

type ReportRepository struct {
	db *DB
}

func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

type reportRow struct {
	RunID       string    `db:"run_id"`
	GeneratedAt time.Time `db:"generated_at"`
	Source      string    `db:"source"`
	Report      []byte    `db:"report"`
}

func (r *ReportRepository) SaveReport(ctx context.Context, env domain.ReportEnvelope) error {
	payload, err := json.Marshal(env.Report)
	if err != nil {
		return errors.Wrap(err, "marshal report")
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO forecast_reports (run_id, generated_at, source, status, report)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (run_id) DO UPDATE SET
				generated_at = EXCLUDED.generated_at,
				source = EXCLUDED.source,
				status = EXCLUDED.status,
				report = EXCLUDED.report
		`, env.RunID, env.GeneratedAt, env.Source, string(env.Report.Status), string(payload))
		return errors.Wrap(err, "save report")
	})
}

func (r *ReportRepository) LatestReport(ctx context.Context) (*domain.ReportEnvelope, error) {
	var row reportRow
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

	env := &domain.ReportEnvelope{RunID: row.RunID, GeneratedAt: row.GeneratedAt.UTC(), Source: row.Source}
	if err := json.Unmarshal(row.Report, &env.Report); err != nil {
		return nil, errors.Wrap(err, "decode report")
	}
	return env, nil
}
