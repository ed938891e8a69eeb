// Package migration defines how the schema a fixture file writes into is brought up
// before any prepare script runs. Atlas-backed migrations live in the atlas package;
// callers may plug in their own.
package migration

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Migrator brings the database reachable through pool to the schema the fixture
// scripts expect. The kit calls Apply once, after connecting and before loading scripts.
type Migrator interface {
	Apply(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error
}

// MigratorFunc adapts a function to Migrator, handy for a few CREATE TABLE statements
// in tests.
type MigratorFunc func(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error

// Apply implements Migrator.
func (f MigratorFunc) Apply(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	return f(ctx, pool, logger)
}

// NoOpMigrator leaves the schema untouched. It is the default.
type NoOpMigrator struct{}

// Apply implements Migrator.
func (m *NoOpMigrator) Apply(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	logger.Debug("Schema migration skipped (NoOpMigrator).")
	return nil
}
