package ledger

import (
	"context"
	"database/sql"
)

// PostgresLedger persists completed order ids in Postgres.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger constructs a ledger backed by Postgres.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// NewPostgresLedgerWithSchema initializes the schema then returns the ledger.
func NewPostgresLedgerWithSchema(ctx context.Context, db *sql.DB) (*PostgresLedger, error) {
	l := NewPostgresLedger(db)
	if err := l.InitSchema(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// InitSchema creates the order history table if it does not exist.
func (l *PostgresLedger) InitSchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS order_history (
			order_id TEXT PRIMARY KEY,
			completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// Append inserts the order id, ignoring repeats.
func (l *PostgresLedger) Append(ctx context.Context, orderID string) error {
	if orderID == "" {
		return ErrEmptyOrderID
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO order_history (order_id) VALUES ($1) ON CONFLICT (order_id) DO NOTHING`,
		orderID,
	)
	return err
}

// Contains reports whether an order id has been recorded.
func (l *PostgresLedger) Contains(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM order_history WHERE order_id = $1)`,
		orderID,
	).Scan(&exists)
	return exists, err
}
