// Package store opens the repositories for the configured backend and the
// summary cache, with the health checks that go with them.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/segyhp/loan-ledger/internal/cache"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/repository"
	mongorepo "github.com/segyhp/loan-ledger/internal/repository/mongo"
	"github.com/segyhp/loan-ledger/internal/repository/sheet"
	"github.com/segyhp/loan-ledger/pkg/logger"
)

// Check probes a backend. A nil error means it is reachable.
type Check func(ctx context.Context) error

// Store is an open backend. Close releases its connections.
type Store struct {
	Loans    repository.LoanRepository
	Payments repository.PaymentRepository
	Users    repository.UserRepository
	Check    Check
	Close    func() error
}

// Open connects to the backend selected by STORE_DRIVER and prepares its
// schema or indexes.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		return openSQL(ctx, cfg, "postgres", cfg.Database.URL)
	case config.StoreDriverSQLite:
		return openSQL(ctx, cfg, "sqlite3", cfg.Database.SQLitePath)
	case config.StoreDriverMongo:
		return openMongo(ctx, cfg)
	case config.StoreDriverSheet:
		return openSheet(cfg), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openSQL(ctx context.Context, cfg *config.Config, driver, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.GetConnMaxLifetime())
	if driver == "sqlite3" {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	if err := repository.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("store opened", zap.String("driver", driver))
	return &Store{
		Loans:    repository.NewLoanRepository(db),
		Payments: repository.NewPaymentRepository(db),
		Users:    repository.NewUserRepository(db),
		Check:    db.PingContext,
		Close:    db.Close,
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config) (*Store, error) {
	client, err := mongorepo.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	db := client.Database(cfg.Mongo.Database)
	if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	logger.Info("store opened", zap.String("driver", "mongo"), zap.String("database", cfg.Mongo.Database))
	return &Store{
		Loans:    mongorepo.NewLoanRepository(db),
		Payments: mongorepo.NewPaymentRepository(db),
		Users:    mongorepo.NewUserRepository(db),
		Check: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		Close: func() error {
			return client.Disconnect(context.Background())
		},
	}, nil
}

func openSheet(cfg *config.Config) *Store {
	client := sheet.NewClient(cfg.Sheet.APIURL, cfg.GetSheetTimeout())
	s := sheet.NewStore(client)

	logger.Info("store opened", zap.String("driver", "sheet"))
	return &Store{
		Loans:    s.Loans(),
		Payments: s.Payments(),
		Users:    s.Users(),
		Check: func(ctx context.Context) error {
			_, err := client.FetchAll(ctx)
			return err
		},
		Close: func() error { return nil },
	}
}

// Cache is the summary cache and, when Redis is enabled, its client.
type Cache struct {
	Summaries cache.SummaryCache
	Check     Check
	Close     func() error
}

// OpenCache returns a Redis-backed summary cache, or a no-op one when
// REDIS_ENABLED is false. An unreachable Redis is reported but not fatal.
func OpenCache(ctx context.Context, cfg *config.Config) *Cache {
	if !cfg.Redis.Enabled {
		logger.Info("summary cache disabled")
		return &Cache{
			Summaries: cache.Noop{},
			Close:     func() error { return nil },
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, summaries will be computed", zap.String("addr", cfg.RedisAddr()), zap.Error(err))
	}

	return &Cache{
		Summaries: cache.NewRedisSummaryCache(client, cfg.GetCacheTTL()),
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		Close: client.Close,
	}
}
