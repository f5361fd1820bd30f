package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strings"
	"time"

	"tollgate/cmd/server/config"
	checkoutdb "tollgate/internal/db/checkout"
	"tollgate/internal/ledger"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

var openLedgerDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// buildStores wires the order-history ledger (fanning out to every configured
// backend) and, when Postgres is configured, the checkout attempt journal.
// The in-memory ledger is always present so a completed purchase is never
// dropped even with no durable backend configured.
func buildStores(ctx context.Context) (ledger.Appender, *checkoutdb.Journal, func(), error) {
	appenders := []ledger.Appender{ledger.NewMemoryLedger()}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if path := strings.TrimSpace(os.Getenv("LEDGER_FILE")); path != "" {
		fileLedger, err := ledger.NewFileLedger(path)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		appenders = append(appenders, fileLedger)
		cleanups = append(cleanups, func() {
			if err := fileLedger.Close(); err != nil {
				log.Printf("close ledger file: %v", err)
			}
		})
	}

	if config.RedisConfigured() {
		redisLedger, closeRedis, err := buildRedisLedger(ctx)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		appenders = append(appenders, redisLedger)
		cleanups = append(cleanups, closeRedis)
	}

	var journal *checkoutdb.Journal
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		db, err := openLedgerDB("pgx", dsn)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}

		setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		pgLedger, err := ledger.NewPostgresLedgerWithSchema(setupCtx, db)
		if err != nil {
			_ = db.Close()
			cleanup()
			return nil, nil, nil, err
		}
		journal, err = checkoutdb.NewJournalWithSchema(setupCtx, db)
		if err != nil {
			_ = db.Close()
			cleanup()
			return nil, nil, nil, err
		}

		appenders = append(appenders, pgLedger)
		cleanups = append(cleanups, func() {
			if err := db.Close(); err != nil {
				log.Printf("close ledger db: %v", err)
			}
		})
	}

	return ledger.NewMultiLedger(appenders...), journal, cleanup, nil
}

func buildRedisLedger(ctx context.Context) (ledger.Appender, func(), error) {
	cfg, err := config.LoadRedis()
	if err != nil {
		return nil, nil, err
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DialTimeout != nil {
		opts.DialTimeout = *cfg.DialTimeout
	}
	if cfg.ReadTimeout != nil {
		opts.ReadTimeout = *cfg.ReadTimeout
	}
	if cfg.WriteTimeout != nil {
		opts.WriteTimeout = *cfg.WriteTimeout
	}
	if cfg.PoolSize != nil {
		opts.PoolSize = *cfg.PoolSize
	}
	if cfg.MinIdleConns != nil {
		opts.MinIdleConns = *cfg.MinIdleConns
	}
	if cfg.MaxRetries != nil {
		opts.MaxRetries = *cfg.MaxRetries
	}
	if cfg.TLSConfig != nil {
		opts.TLSConfig = cfg.TLSConfig
	}

	client := redis.NewClient(opts)
	if cfg.EnableOTel {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
	}

	pingCtx := ctx
	if pingCtx == nil {
		pingCtx = context.Background()
	}
	if cfg.HealthcheckTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(pingCtx, cfg.HealthcheckTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	closeRedis := func() {
		if err := client.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}
	return ledger.NewRedisLedger(redisClientAdapter{client: client}, cfg.Stream, cfg.StreamMaxLen), closeRedis, nil
}

type redisClientAdapter struct {
	client *redis.Client
}

func (a redisClientAdapter) Pipeline() ledger.RedisPipeliner {
	return redisPipelineAdapter{pipe: a.client.Pipeline()}
}

type redisPipelineAdapter struct {
	pipe redis.Pipeliner
}

func (p redisPipelineAdapter) SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd {
	return p.pipe.SAdd(ctx, key, members...)
}

func (p redisPipelineAdapter) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	return p.pipe.XAdd(ctx, a)
}

func (p redisPipelineAdapter) Exec(ctx context.Context) ([]redis.Cmder, error) {
	return p.pipe.Exec(ctx)
}
