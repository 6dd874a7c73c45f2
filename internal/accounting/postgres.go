package accounting

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"payment-gateway/internal/entities"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const createPaymentsTable = `CREATE TABLE IF NOT EXISTS payments (
	correlation_id TEXT PRIMARY KEY,
	amount         NUMERIC(18, 2) NOT NULL,
	processor      TEXT NOT NULL,
	requested_at   TIMESTAMPTZ NOT NULL
)`

func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// PostgresLedger keys rows by correlation id, so a payment redelivered
// after a crash is counted once.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, createPaymentsTable)
	return err
}

func (l *PostgresLedger) Record(ctx context.Context, d entities.Dispatch) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO payments (correlation_id, amount, processor, requested_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (correlation_id) DO NOTHING`,
		d.CorrelationId, d.Amount, d.Processor, d.RequestedAt.UTC())
	return err
}

func (l *PostgresLedger) Summary(ctx context.Context, from, to time.Time) (*entities.PaymentsSummary, error) {
	var (
		conditions []string
		args       []any
	)

	if !from.IsZero() {
		args = append(args, from.UTC())
		conditions = append(conditions, fmt.Sprintf("requested_at >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to.UTC())
		conditions = append(conditions, fmt.Sprintf("requested_at <= $%d", len(args)))
	}

	query := `SELECT processor, COUNT(*), COALESCE(SUM(amount), 0) FROM payments`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " GROUP BY processor"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &entities.PaymentsSummary{}
	for rows.Next() {
		var (
			processor string
			stats     entities.PaymentStats
			total     decimal.Decimal
		)
		if err := rows.Scan(&processor, &stats.TotalRequests, &total); err != nil {
			return nil, err
		}
		stats.TotalAmount = total

		switch processor {
		case "default":
			summary.Default = stats
		case "fallback":
			summary.Fallback = stats
		}
	}

	return summary, rows.Err()
}

func (l *PostgresLedger) Clear(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM payments`)
	return err
}
