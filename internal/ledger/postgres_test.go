package ledger

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newLedgerMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	}

	return db, mock, cleanup
}

func TestPostgresLedger_InitSchema(t *testing.T) {
	db, mock, cleanup := newLedgerMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS order_history").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	l := NewPostgresLedger(db)
	if err := l.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
}

func TestPostgresLedger_AppendInserts(t *testing.T) {
	db, mock, cleanup := newLedgerMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("INSERT INTO order_history").
		WithArgs("ord_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	l := NewPostgresLedger(db)
	if err := l.Append(context.Background(), "ord_1"); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestPostgresLedger_AppendRepeatIsNoop(t *testing.T) {
	db, mock, cleanup := newLedgerMockDB(t)
	t.Cleanup(cleanup)

	// ON CONFLICT DO NOTHING reports zero rows affected; still not an error.
	mock.ExpectExec("INSERT INTO order_history").
		WithArgs("ord_1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	l := NewPostgresLedger(db)
	if err := l.Append(context.Background(), "ord_1"); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestPostgresLedger_AppendRejectsEmptyOrderID(t *testing.T) {
	db, mock, cleanup := newLedgerMockDB(t)
	t.Cleanup(cleanup)
	mock.ExpectClose()

	l := NewPostgresLedger(db)
	if err := l.Append(context.Background(), ""); !errors.Is(err, ErrEmptyOrderID) {
		t.Fatalf("expected ErrEmptyOrderID, got %v", err)
	}
}

func TestPostgresLedger_Contains(t *testing.T) {
	db, mock, cleanup := newLedgerMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ord_1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectClose()

	l := NewPostgresLedger(db)
	got, err := l.Contains(context.Background(), "ord_1")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !got {
		t.Fatalf("expected ord_1 to be recorded")
	}
}
