// Package connection opens and closes the database handles fixture scripts run through:
// a pgx pool and a database/sql handle over lib/pq.
package connection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
	"go.uber.org/zap"

	"github.com/veiloq/fixturekit/internal/cleanup"
)

const (
	pingTimeout = 5 * time.Second
	poolTimeout = 10 * time.Second
)

// Handles are the open connections to one database.
type Handles struct {
	Pool *pgxpool.Pool
	DB   *sql.DB
}

// Open connects both handles to dsn and pings them. On failure nothing is left open.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Handles, error) {
	if dsn == "" {
		return nil, fmt.Errorf("failed to open connections: empty DSN")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dbName := DatabaseName(dsn)

	logger.Debug("Connecting to database (sql.DB)", zap.String("database", dbName))
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection to database '%s': %w", dbName, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database '%s' (sql.DB): %w", dbName, err)
	}

	logger.Debug("Creating pgx connection pool", zap.String("database", dbName))
	pgxConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to parse DSN for pgx pool: %w", err)
	}
	poolCtx, poolCancel := context.WithTimeout(ctx, poolTimeout)
	defer poolCancel()
	pool, err := pgxpool.NewWithConfig(poolCtx, pgxConfig)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create pgx connection pool: %w", err)
	}
	pingPoolCtx, pingPoolCancel := context.WithTimeout(ctx, pingTimeout)
	defer pingPoolCancel()
	if err = pool.Ping(pingPoolCtx); err != nil {
		pool.Close()
		db.Close()
		return nil, fmt.Errorf("failed to ping pgx pool for database '%s': %w", dbName, err)
	}

	logger.Info("Connected to database", zap.String("database", dbName))
	return &Handles{Pool: pool, DB: db}, nil
}

// CloseDB returns a cleanup step closing *dbPtr. The pointer is cleared on success so
// the step is safe to run twice.
func CloseDB(dbPtr **sql.DB, logger *zap.Logger) cleanup.Func {
	return func() error {
		db := *dbPtr
		if db == nil {
			logger.Debug("sql.DB connection already closed or never opened.")
			return nil
		}
		if err := db.Close(); err != nil {
			return fmt.Errorf("error closing sql.DB connection: %w", err)
		}
		logger.Debug("Closed sql.DB connection")
		*dbPtr = nil
		return nil
	}
}

// ClosePool returns a cleanup step closing *poolPtr and clearing the pointer.
func ClosePool(poolPtr **pgxpool.Pool, logger *zap.Logger) cleanup.Func {
	return func() error {
		pool := *poolPtr
		if pool == nil {
			logger.Debug("pgxpool.Pool connection already closed or never opened.")
			return nil
		}
		pool.Close()
		logger.Debug("Closed pgxpool.Pool connection")
		*poolPtr = nil
		return nil
	}
}

// DatabaseName extracts the database name from a URL or key=value DSN for log
// messages. It returns "unknown" when the DSN cannot be parsed or names no database.
func DatabaseName(dsn string) string {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil || cfg.Database == "" {
		return "unknown"
	}
	return cfg.Database
}
