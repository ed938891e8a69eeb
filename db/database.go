package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
	"go.uber.org/zap"

	"github.com/veiloq/fixturekit/internal/cleanup"
)

const adminTimeout = 15 * time.Second

// CreateDatabase creates database name through the admin connection at adminDSN.
func CreateDatabase(ctx context.Context, adminDSN, name string, logger *zap.Logger) error {
	admin, err := sql.Open("postgres", adminDSN)
	if err != nil {
		return fmt.Errorf("failed to open admin connection: %w", err)
	}
	defer admin.Close()

	execCtx, cancel := context.WithTimeout(ctx, adminTimeout)
	defer cancel()
	if _, err = admin.ExecContext(execCtx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return fmt.Errorf("failed to create database %q: %w", name, err)
	}
	logger.Info("Created database", zap.String("database", name))
	return nil
}

// DropDatabase returns a cleanup step that terminates the sessions on database name and
// drops it.
func DropDatabase(adminDSN, name string, logger *zap.Logger) cleanup.Func {
	return func() error {
		admin, err := sql.Open("postgres", adminDSN)
		if err != nil {
			return fmt.Errorf("cleanup: error connecting to admin DB to drop %q: %w", name, err)
		}
		defer admin.Close()

		ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
		defer cancel()
		if _, err := admin.ExecContext(ctx,
			`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()`,
			name,
		); err != nil {
			logger.Warn("Cleanup: failed to terminate connections before drop, proceeding anyway", zap.String("database", name), zap.Error(err))
		}
		if _, err := admin.ExecContext(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize()); err != nil {
			return fmt.Errorf("cleanup: error dropping database %q: %w", name, err)
		}
		logger.Info("Dropped database", zap.String("database", name))
		return nil
	}
}

// NewDatabase creates a uniquely named database on the server and returns its DSN with
// the step that drops it.
func (s *Server) NewDatabase(ctx context.Context, prefix string) (string, cleanup.Func, error) {
	name, err := UniqueName(prefix)
	if err != nil {
		return "", nil, err
	}
	if err := CreateDatabase(ctx, s.DSN(), name, s.logger); err != nil {
		return "", nil, err
	}
	return s.cfg.DSN(name), DropDatabase(s.DSN(), name, s.logger), nil
}

// WithDatabase returns dsn pointing at database instead.
func WithDatabase(dsn, database string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse DSN: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("DSN is not a postgres URL")
	}
	u.Path = "/" + database
	return u.String(), nil
}

// maxIdentifierLen is PostgreSQL's NAMEDATALEN-1.
const maxIdentifierLen = 63

// UniqueName derives a database name from prefix: the prefix in lower case with '-'
// turned into '_', then 16 random hex digits, cut to maxIdentifierLen bytes.
// NewDatabase uses it so concurrent runs on one server never collide.
func UniqueName(prefix string) (string, error) {
	var suffix [8]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", fmt.Errorf("failed to generate database name suffix: %w", err)
	}
	var b strings.Builder
	b.WriteString(strings.ReplaceAll(strings.ToLower(prefix), "-", "_"))
	b.WriteString(hex.EncodeToString(suffix[:]))
	name := b.String()
	if len(name) > maxIdentifierLen {
		name = name[:maxIdentifierLen]
	}
	return name, nil
}
