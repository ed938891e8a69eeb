// Package executor runs fixture scripts against a database. It mirrors the Migrator
// abstraction: the kit holds one Executor and hands it scripts to run before and after
// tests.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/veiloq/fixturekit/script"
)

// DefaultTimeout bounds a single script execution.
const DefaultTimeout = 30 * time.Second

// ErrSQLLineComment is returned for a script holding a "--" comment outside a quoted
// literal. Script lines are joined without newlines, so such a comment would swallow
// every statement after it.
var ErrSQLLineComment = errors.New("SQL line comment in fixture script")

// statements returns the SQL text of s, rejecting "--" comments.
func statements(s script.NamedScript) (string, error) {
	stmts := s.Statements()
	if pos := lineCommentIndex(stmts); pos != -1 {
		end := min(pos+40, len(stmts))
		return "", fmt.Errorf("%w: script %q near %q (use /* */ or // instead)", ErrSQLLineComment, s.Name(), stmts[pos:end])
	}
	return stmts, nil
}

// lineCommentIndex finds "--" outside single quoted, double quoted and dollar quoted
// text, or returns -1.
func lineCommentIndex(sql string) int {
	var quote byte
	var dollarTag string
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case dollarTag != "":
			if c == '$' && len(sql)-i >= len(dollarTag) && sql[i:i+len(dollarTag)] == dollarTag {
				i += len(dollarTag) - 1
				dollarTag = ""
			}
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '$':
			if end := dollarTagEnd(sql, i); end != -1 {
				dollarTag = sql[i : end+1]
				i = end
			}
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			return i
		}
	}
	return -1
}

// dollarTagEnd returns the index of the closing '$' of a tag like $$ or $body$ starting
// at i, or -1.
func dollarTagEnd(sql string, i int) int {
	for j := i + 1; j < len(sql); j++ {
		c := sql[j]
		switch {
		case c == '$':
			return j
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || j > i+1 && c >= '0' && c <= '9':
		default:
			return -1
		}
	}
	return -1
}

// Executor runs a named script. Implementations log through the given logger and
// honour ctx for cancellation.
type Executor interface {
	Execute(ctx context.Context, s script.NamedScript, logger *zap.Logger) error
}

// Func adapts a plain function to Executor.
type Func func(ctx context.Context, s script.NamedScript, logger *zap.Logger) error

// Execute implements Executor.
func (f Func) Execute(ctx context.Context, s script.NamedScript, logger *zap.Logger) error {
	return f(ctx, s, logger)
}

// NoOpExecutor only logs the scripts it is asked to run.
type NoOpExecutor struct{}

// Execute implements Executor.
func (NoOpExecutor) Execute(ctx context.Context, s script.NamedScript, logger *zap.Logger) error {
	logger.Debug("Script execution skipped (NoOpExecutor).", zap.String("script", s.Name()))
	return nil
}

// Execer is the part of *pgxpool.Pool, *pgx.Conn and pgx.Tx used by PoolExecutor.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PoolExecutor runs script statements through pgx. Statements are sent without
// arguments, so pgx uses the simple protocol and a script may hold several statements.
type PoolExecutor struct {
	conn    Execer
	timeout time.Duration
}

// NewPoolExecutor returns a PoolExecutor. A non-positive timeout selects DefaultTimeout.
func NewPoolExecutor(conn Execer, timeout time.Duration) *PoolExecutor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PoolExecutor{conn: conn, timeout: timeout}
}

// Execute implements Executor.
func (e *PoolExecutor) Execute(ctx context.Context, s script.NamedScript, logger *zap.Logger) error {
	stmts, err := statements(s)
	if err != nil {
		logger.Error("Rejected fixture script", zap.String("script", s.Name()), zap.Error(err))
		return err
	}
	if stmts == "" {
		logger.Debug("Script has no statements, skipping", zap.String("script", s.Name()))
		return nil
	}
	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	tag, err := e.conn.Exec(execCtx, stmts)
	if err != nil {
		logger.Error("Failed to execute fixture script", zap.String("script", s.Name()), zap.Error(err))
		return fmt.Errorf("failed to execute script %q: %w", s.Name(), err)
	}
	logger.Debug("Executed fixture script",
		zap.String("script", s.Name()),
		zap.String("command_tag", tag.String()),
		zap.Int64("rows_affected", tag.RowsAffected()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// SQLExecer is the part of *sql.DB, *sql.Conn and *sql.Tx used by SQLExecutor.
type SQLExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLExecutor runs script statements through database/sql (the lib/pq "postgres" driver in
// the kit). lib/pq sends argument-free queries as a simple query, which allows several
// statements per script.
type SQLExecutor struct {
	db      SQLExecer
	timeout time.Duration
}

// NewSQLExecutor returns a SQLExecutor. A non-positive timeout selects DefaultTimeout.
func NewSQLExecutor(db SQLExecer, timeout time.Duration) *SQLExecutor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SQLExecutor{db: db, timeout: timeout}
}

// Execute implements Executor.
func (e *SQLExecutor) Execute(ctx context.Context, s script.NamedScript, logger *zap.Logger) error {
	stmts, err := statements(s)
	if err != nil {
		logger.Error("Rejected fixture script", zap.String("script", s.Name()), zap.Error(err))
		return err
	}
	if stmts == "" {
		logger.Debug("Script has no statements, skipping", zap.String("script", s.Name()))
		return nil
	}
	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	res, err := e.db.ExecContext(execCtx, stmts)
	if err != nil {
		logger.Error("Failed to execute fixture script", zap.String("script", s.Name()), zap.Error(err))
		return fmt.Errorf("failed to execute script %q: %w", s.Name(), err)
	}
	fields := []zap.Field{zap.String("script", s.Name()), zap.Duration("elapsed", time.Since(start))}
	if n, rowsErr := res.RowsAffected(); rowsErr == nil {
		fields = append(fields, zap.Int64("rows_affected", n))
	}
	logger.Debug("Executed fixture script", fields...)
	return nil
}
