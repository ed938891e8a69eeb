package atlas

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ariga.io/atlas/sql/migrate"
	"github.com/jackc/pgx/v5"
)

// RevisionTable records the migration files applied to a database, so a database
// reused across test runs only receives new files.
const RevisionTable = "fixturekit_schema_revisions"

// revisionStore is a migrate.RevisionReadWriter backed by RevisionTable.
type revisionStore struct {
	db    *sql.DB
	table string
}

func newRevisionStore(ctx context.Context, db *sql.DB) (*revisionStore, error) {
	s := &revisionStore{db: db, table: RevisionTable}
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.quoted()+` (
		version          TEXT PRIMARY KEY,
		description      TEXT NOT NULL,
		type             BIGINT NOT NULL,
		applied          BIGINT NOT NULL,
		total            BIGINT NOT NULL,
		executed_at      TIMESTAMPTZ NOT NULL,
		execution_time   BIGINT NOT NULL,
		error            TEXT NOT NULL,
		error_stmt       TEXT NOT NULL,
		hash             TEXT NOT NULL,
		partial_hashes   TEXT NOT NULL,
		operator_version TEXT NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create revision table %s: %w", s.table, err)
	}
	return s, nil
}

func (s *revisionStore) quoted() string {
	return pgx.Identifier{s.table}.Sanitize()
}

const revisionColumns = `version, description, type, applied, total, executed_at, execution_time,
	error, error_stmt, hash, partial_hashes, operator_version`

// Ident implements migrate.RevisionReadWriter.
func (s *revisionStore) Ident() *migrate.TableIdent {
	return &migrate.TableIdent{Name: s.table}
}

// ReadRevisions implements migrate.RevisionReadWriter.
func (s *revisionStore) ReadRevisions(ctx context.Context) ([]*migrate.Revision, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+revisionColumns+` FROM `+s.quoted()+` ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to read revisions: %w", err)
	}
	defer rows.Close()

	var revs []*migrate.Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read revisions: %w", err)
	}
	return revs, nil
}

// ReadRevision implements migrate.RevisionReadWriter.
func (s *revisionStore) ReadRevision(ctx context.Context, version string) (*migrate.Revision, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+revisionColumns+` FROM `+s.quoted()+` WHERE version = $1`, version)
	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, migrate.ErrRevisionNotExist
	}
	return rev, err
}

// WriteRevision implements migrate.RevisionReadWriter. Atlas writes a revision several
// times while its file runs, so the row is upserted.
func (s *revisionStore) WriteRevision(ctx context.Context, rev *migrate.Revision) error {
	partial, err := json.Marshal(rev.PartialHashes)
	if err != nil {
		return fmt.Errorf("failed to encode partial hashes of %s: %w", rev.Version, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO `+s.quoted()+` (`+revisionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (version) DO UPDATE SET
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			applied = EXCLUDED.applied,
			total = EXCLUDED.total,
			executed_at = EXCLUDED.executed_at,
			execution_time = EXCLUDED.execution_time,
			error = EXCLUDED.error,
			error_stmt = EXCLUDED.error_stmt,
			hash = EXCLUDED.hash,
			partial_hashes = EXCLUDED.partial_hashes,
			operator_version = EXCLUDED.operator_version`,
		rev.Version, rev.Description, int64(rev.Type), int64(rev.Applied), int64(rev.Total),
		rev.ExecutedAt, int64(rev.ExecutionTime), rev.Error, rev.ErrorStmt, rev.Hash,
		string(partial), rev.OperatorVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to write revision %s: %w", rev.Version, err)
	}
	return nil
}

// DeleteRevision implements migrate.RevisionReadWriter.
func (s *revisionStore) DeleteRevision(ctx context.Context, version string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+s.quoted()+` WHERE version = $1`, version); err != nil {
		return fmt.Errorf("failed to delete revision %s: %w", version, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRevision(sc scanner) (*migrate.Revision, error) {
	var (
		rev                           migrate.Revision
		typ, applied, total, execTime int64
		executedAt                    time.Time
		partial                       string
	)
	err := sc.Scan(&rev.Version, &rev.Description, &typ, &applied, &total, &executedAt, &execTime,
		&rev.Error, &rev.ErrorStmt, &rev.Hash, &partial, &rev.OperatorVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan revision: %w", err)
	}
	if err := json.Unmarshal([]byte(partial), &rev.PartialHashes); err != nil {
		return nil, fmt.Errorf("failed to decode partial hashes of %s: %w", rev.Version, err)
	}
	rev.Type = migrate.RevisionType(typ)
	rev.Applied, rev.Total = int(applied), int(total)
	rev.ExecutedAt = executedAt
	rev.ExecutionTime = time.Duration(execTime)
	return &rev, nil
}
