// Package atlas applies an Atlas migration directory to the fixture database before any
// script runs. The directory is discovered from an atlas.hcl project file.
package atlas

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ariga.io/atlas/sql/migrate"
	postgres "ariga.io/atlas/sql/postgres"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"go.uber.org/zap"

	"github.com/veiloq/fixturekit/connection"
)

// applyTimeout bounds opening the driver and executing all pending files.
const applyTimeout = 90 * time.Second

// Migrator implements migration.Migrator with the Atlas core library.
type Migrator struct {
	hclPath string
	logger  *zap.Logger

	once    sync.Once
	dir     migrate.Dir
	dirPath string
	initErr error
}

// NewMigrator creates a Migrator reading hclPath lazily, on the first Apply.
func NewMigrator(hclPath string, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{
		hclPath: hclPath,
		logger:  logger.With(zap.String("migrator", "atlas")),
	}
}

// Apply executes the migration files not yet recorded in RevisionTable, so repeated
// runs against one database are safe. A missing atlas.hcl, or one without a migration
// directory, skips migrations without error.
func (m *Migrator) Apply(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	m.once.Do(m.init)
	if m.initErr != nil {
		return fmt.Errorf("atlas migrator initialization failed: %w", m.initErr)
	}
	if m.dir == nil {
		logger.Info("Schema migration skipped: no Atlas migration directory configured.", zap.String("hcl_path", m.hclPath))
		return nil
	}

	dsn := pool.Config().ConnString()
	dbName := connection.DatabaseName(dsn)
	logger.Info("Applying Atlas migrations", zap.String("database", dbName), zap.String("source_dir", m.dirPath))

	applyCtx, cancel := context.WithTimeout(ctx, applyTimeout)
	defer cancel()

	stdDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database/sql connection for atlas: %w", err)
	}
	defer func() {
		if closeErr := stdDB.Close(); closeErr != nil {
			logger.Warn("Error closing database/sql connection used by atlas", zap.Error(closeErr))
		}
	}()
	if err := stdDB.PingContext(applyCtx); err != nil {
		return fmt.Errorf("failed to ping %q for atlas: %w", dbName, err)
	}

	drv, err := postgres.Open(stdDB)
	if err != nil {
		return fmt.Errorf("failed to open atlas postgres driver: %w", err)
	}
	revs, err := newRevisionStore(applyCtx, stdDB)
	if err != nil {
		return err
	}
	// The database may already hold tables created outside Atlas (hooks, earlier runs).
	exec, err := migrate.NewExecutor(drv, m.dir, revs,
		migrate.WithLogger(&zapLogger{logger: logger}),
		migrate.WithAllowDirty(true),
	)
	if err != nil {
		return fmt.Errorf("failed to create atlas executor for %q: %w", dbName, err)
	}
	if err := exec.ExecuteN(applyCtx, 0); err != nil {
		if errors.Is(err, migrate.ErrNoPendingFiles) {
			logger.Info("No pending Atlas migrations.", zap.String("database", dbName))
			return nil
		}
		return fmt.Errorf("failed to apply atlas migrations from %q to %q: %w", m.dirPath, dbName, err)
	}
	logger.Info("Applied Atlas migrations", zap.String("database", dbName))
	return nil
}

func (m *Migrator) init() {
	absHCL, err := filepath.Abs(m.hclPath)
	if err != nil {
		m.initErr = fmt.Errorf("failed to resolve atlas HCL path %q: %w", m.hclPath, err)
		return
	}
	if _, err := os.Stat(absHCL); err != nil {
		if os.IsNotExist(err) {
			m.logger.Info("Atlas HCL file not found, migrations disabled.", zap.String("path", absHCL))
			return
		}
		m.initErr = fmt.Errorf("failed to stat atlas HCL file %q: %w", absHCL, err)
		return
	}

	var project projectHCL
	if err := hclsimple.DecodeFile(absHCL, nil, &project); err != nil {
		m.initErr = fmt.Errorf("failed to decode atlas HCL file %q: %w", absHCL, err)
		return
	}
	rel, ok := project.migrationDir(m.logger)
	if !ok {
		return
	}

	dirPath := filepath.Join(filepath.Dir(absHCL), strings.TrimPrefix(rel, "file://"))
	dir, err := migrate.NewLocalDir(dirPath)
	if err != nil {
		m.initErr = fmt.Errorf("failed to open migration directory %q: %w", dirPath, err)
		return
	}
	m.dir, m.dirPath = dir, dirPath
	m.logger.Debug("Resolved Atlas migration directory", zap.String("path", dirPath))
}

// projectHCL is the subset of atlas.hcl the migrator reads.
type projectHCL struct {
	Envs []*envHCL `hcl:"env,block"`
}

type envHCL struct {
	Name      string        `hcl:"name,label"`
	Migration *migrationHCL `hcl:"migration,block"`
}

type migrationHCL struct {
	Dir string `hcl:"dir"`
}

// migrationDir prefers the "local" env and falls back to the first env.
func (p *projectHCL) migrationDir(logger *zap.Logger) (string, bool) {
	for _, env := range p.Envs {
		if env.Name == "local" && env.Migration != nil && env.Migration.Dir != "" {
			return env.Migration.Dir, true
		}
	}
	if len(p.Envs) > 0 && p.Envs[0].Migration != nil && p.Envs[0].Migration.Dir != "" {
		logger.Warn("Atlas env \"local\" has no migration dir, using first env.", zap.String("env", p.Envs[0].Name))
		return p.Envs[0].Migration.Dir, true
	}
	logger.Warn("No env.migration.dir found in atlas HCL file.")
	return "", false
}

// zapLogger forwards Atlas execution events to zap.
type zapLogger struct {
	logger *zap.Logger
}

func (l *zapLogger) Log(entry migrate.LogEntry) {
	switch e := entry.(type) {
	case migrate.LogExecution:
		l.logger.Info("Atlas execution starting", zap.String("from", e.From), zap.String("to", e.To), zap.Int("files", len(e.Files)))
	case migrate.LogFile:
		l.logger.Info("Applying migration file", zap.String("file", e.File.Name()))
	case migrate.LogStmt:
		l.logger.Debug("Executing statement", zap.String("sql", e.SQL))
	case migrate.LogError:
		l.logger.Error("Atlas migration error", zap.String("sql", e.SQL), zap.Error(e.Error))
	case migrate.LogDone:
		l.logger.Info("Atlas execution finished")
	}
}
