package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tollgate/internal/ledger"
)

func clearStoreEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LEDGER_FILE", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("DATABASE_URL", "")
}

func TestBuildStoresDefaultsToMemory(t *testing.T) {
	clearStoreEnv(t)

	appender, journal, cleanup, err := buildStores(context.Background())
	if err != nil {
		t.Fatalf("buildStores: %v", err)
	}
	t.Cleanup(cleanup)

	if journal != nil {
		t.Fatalf("expected no journal without DATABASE_URL")
	}
	if err := appender.Append(context.Background(), "ord_1"); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestBuildStoresWithFileLedger(t *testing.T) {
	clearStoreEnv(t)
	path := filepath.Join(t.TempDir(), "orders.log")
	t.Setenv("LEDGER_FILE", path)

	appender, _, cleanup, err := buildStores(context.Background())
	if err != nil {
		t.Fatalf("buildStores: %v", err)
	}
	t.Cleanup(cleanup)

	if err := appender.Append(context.Background(), "ord_1"); err != nil {
		t.Fatalf("append: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger file: %v", err)
	}
	if string(data) != "ord_1\n" {
		t.Fatalf("unexpected ledger file contents: %q", string(data))
	}
}

func TestBuildStoresRejectsBadRedisURL(t *testing.T) {
	clearStoreEnv(t)
	t.Setenv("REDIS_URL", "not a url")
	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "100ms")
	t.Setenv("REDIS_STREAM_MAXLEN", "0")

	_, _, _, err := buildStores(context.Background())
	if err == nil {
		t.Fatalf("expected error for an invalid redis url")
	}
}

func TestBuildStoresWiresPostgres(t *testing.T) {
	clearStoreEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/tollgate")

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS order_history").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS checkout_attempts").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS checkout_attempt_steps").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO order_history").
		WithArgs("ord_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	restore := openLedgerDB
	openLedgerDB = func(driver, dsn string) (*sql.DB, error) {
		if driver != "pgx" {
			t.Errorf("expected pgx driver, got %q", driver)
		}
		return db, nil
	}
	t.Cleanup(func() { openLedgerDB = restore })

	appender, journal, cleanup, err := buildStores(context.Background())
	if err != nil {
		t.Fatalf("buildStores: %v", err)
	}
	if journal == nil {
		t.Fatalf("expected a journal when DATABASE_URL is set")
	}
	if err := appender.Append(context.Background(), "ord_1"); err != nil {
		t.Fatalf("append: %v", err)
	}

	cleanup()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRedisClientAdapterRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := ledger.NewRedisLedger(redisClientAdapter{client: client}, "purchase_events", 100)
	if err := l.Append(context.Background(), "ord_1"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(context.Background(), "ord_1"); err != nil {
		t.Fatalf("repeat append: %v", err)
	}

	isMember, err := client.SIsMember(context.Background(), "orders:completed", "ord_1").Result()
	if err != nil {
		t.Fatalf("sismember: %v", err)
	}
	if !isMember {
		t.Fatalf("expected ord_1 in the completed set")
	}

	length, err := client.XLen(context.Background(), "purchase_events").Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	if length != 2 {
		t.Fatalf("expected 2 stream events, got %d", length)
	}
}

func TestBuildRedisLedgerAgainstMiniredis(t *testing.T) {
	clearStoreEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "1s")
	t.Setenv("REDIS_STREAM_MAXLEN", "100")

	appender, closeRedis, err := buildRedisLedger(context.Background())
	if err != nil {
		t.Fatalf("buildRedisLedger: %v", err)
	}
	t.Cleanup(closeRedis)

	if err := appender.Append(context.Background(), "ord_1"); err != nil {
		t.Fatalf("append: %v", err)
	}
	isMember, err := mr.SIsMember("orders:completed", "ord_1")
	if err != nil {
		t.Fatalf("sismember: %v", err)
	}
	if !isMember {
		t.Fatalf("expected ord_1 recorded in redis")
	}
}
