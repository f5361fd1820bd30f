// Package checkoutdb persists an audit trail of checkout attempts in
// Postgres: one row per session plus every step transition. The journal is
// operational forensics (confirmation-uncertain investigations); entitlement
// always comes from the order service.
package checkoutdb

import (
	"context"
	"database/sql"
)

// Journal stores checkout attempts and their step transitions.
type Journal struct {
	db *sql.DB
}

// NewJournal constructs a Journal backed by Postgres.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// NewJournalWithSchema initializes the schema then returns the journal.
func NewJournalWithSchema(ctx context.Context, db *sql.DB) (*Journal, error) {
	j := NewJournal(db)
	if err := j.InitSchema(ctx); err != nil {
		return nil, err
	}
	return j, nil
}

// InitSchema creates the journal tables if they do not exist.
func (j *Journal) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS checkout_attempts (
			session_id TEXT PRIMARY KEY,
			dataset_id TEXT NOT NULL,
			payment_attempt_id TEXT,
			order_id TEXT,
			step TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS checkout_attempt_steps (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			from_step TEXT NOT NULL,
			to_step TEXT NOT NULL,
			detail TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransition upserts the attempt row and appends the step entry.
func (j *Journal) RecordTransition(ctx context.Context, sessionID, datasetID, paymentAttemptID, orderID, fromStep, toStep, detail string) error {
	if sessionID == "" {
		// Discard transitions (back to idle) carry no session identity.
		return nil
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO checkout_attempts (session_id, dataset_id, payment_attempt_id, order_id, step)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		ON CONFLICT (session_id) DO UPDATE SET
			payment_attempt_id = COALESCE(EXCLUDED.payment_attempt_id, checkout_attempts.payment_attempt_id),
			order_id = COALESCE(EXCLUDED.order_id, checkout_attempts.order_id),
			step = EXCLUDED.step,
			updated_at = NOW()`,
		sessionID, datasetID, paymentAttemptID, orderID, toStep,
	)
	if err != nil {
		return err
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO checkout_attempt_steps (session_id, from_step, to_step, detail)
		VALUES ($1, $2, $3, $4)`,
		sessionID, fromStep, toStep, detail,
	)
	return err
}
