package config

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/veiloq/fixturekit/executor"
	"github.com/veiloq/fixturekit/fixture"
	"github.com/veiloq/fixturekit/migration"
	"github.com/veiloq/fixturekit/script"
)

// AfterConnectionHook runs once the kit's connections are open, before migrations and
// before any fixture script.
type AfterConnectionHook func(ctx context.Context, db *sql.DB, pool *pgxpool.Pool, logger *zap.Logger) error

// Settings holds what functional options configure beyond Config.
type Settings struct {
	atlasHCLPath        string
	migrator            migration.Migrator
	executor            executor.Executor // nil: built from Config.Executor
	registry            *fixture.Registry // nil: the kit creates its own
	scriptFile          string            // overrides <ScriptDir>/<suite><Extension>
	suite               string            // overrides the suite derived from t.Name()
	zapOptions          []zap.Option
	zapTestLevel        *zap.AtomicLevel
	afterConnectionHook AfterConnectionHook

	// collected by options that also touch Config
	dsn       string
	scriptDir string
	prefixes  *script.Prefixes
}

func (s *Settings) AtlasHCLPath() string {
	return s.atlasHCLPath
}

func (s *Settings) Migrator() migration.Migrator {
	return s.migrator
}

func (s *Settings) Executor() executor.Executor {
	return s.executor
}

func (s *Settings) Registry() *fixture.Registry {
	return s.registry
}

func (s *Settings) ScriptFile() string {
	return s.scriptFile
}

func (s *Settings) Suite() string {
	return s.suite
}

func (s *Settings) ZapOptions() []zap.Option {
	return s.zapOptions
}

func (s *Settings) ZapTestLevel() *zap.AtomicLevel {
	return s.zapTestLevel
}

func (s *Settings) AfterConnectionHook() AfterConnectionHook {
	return s.afterConnectionHook
}

// SetMigrator replaces the migrator. Options that build a migrator from other settings
// use it.
func (s *Settings) SetMigrator(m migration.Migrator) {
	s.migrator = m
}

// Option configures a kit.
type Option func(*Settings)

// WithAtlasHCLPath sets the Atlas project file read by atlas.WithAtlas. Order matters:
// pass it before atlas.WithAtlas.
func WithAtlasHCLPath(path string) Option {
	return func(s *Settings) { s.atlasHCLPath = path }
}

// WithMigrator sets the migrator applied after connecting.
func WithMigrator(m migration.Migrator) Option {
	return func(s *Settings) {
		if m != nil {
			s.migrator = m
		}
	}
}

// WithExecutor runs scripts through e instead of the database executor named in
// Config.Executor. With an empty DSN the kit then opens no connection at all.
func WithExecutor(e executor.Executor) Option {
	return func(s *Settings) { s.executor = e }
}

// WithRegistry shares a registry between kits.
func WithRegistry(r *fixture.Registry) Option {
	return func(s *Settings) { s.registry = r }
}

// WithScriptDir overrides Config.ScriptDir.
func WithScriptDir(dir string) Option {
	return func(s *Settings) { s.scriptDir = dir }
}

// WithScriptFile reads scripts from path instead of the file derived from the suite name.
func WithScriptFile(path string) Option {
	return func(s *Settings) { s.scriptFile = path }
}

// WithPrefixes overrides Config.PreparePrefix and Config.CleanupPrefix.
func WithPrefixes(p script.Prefixes) Option {
	return func(s *Settings) { s.prefixes = &p }
}

// WithSuite names the suite instead of deriving it from the test name.
func WithSuite(suite string) Option {
	return func(s *Settings) { s.suite = suite }
}

// WithDSN overrides Config.DSN.
func WithDSN(dsn string) Option {
	return func(s *Settings) { s.dsn = dsn }
}

// WithZapOptions provides additional options for the zap logger.
func WithZapOptions(zapOpts ...zap.Option) Option {
	return func(s *Settings) { s.zapOptions = append(s.zapOptions, zapOpts...) }
}

// WithZapTestLevel sets the minimum log level of the zaptest logger.
func WithZapTestLevel(level zapcore.Level) Option {
	return func(s *Settings) {
		atomicLevel := zap.NewAtomicLevelAt(level)
		s.zapTestLevel = &atomicLevel
	}
}

// WithAfterConnectionHook registers a function to run after the connections are established.
func WithAfterConnectionHook(hook AfterConnectionHook) Option {
	return func(s *Settings) { s.afterConnectionHook = hook }
}

// ApplyOptions processes functional options and merges them into a copy of initial.
// A nil initial starts from DefaultConfig.
func ApplyOptions(initial *Config, opts ...Option) (*Settings, Config) {
	settings := &Settings{
		atlasHCLPath: "atlas.hcl",
		migrator:     &migration.NoOpMigrator{},
		zapOptions:   make([]zap.Option, 0),
	}
	for _, opt := range opts {
		opt(settings)
	}

	var cfg Config
	if initial != nil {
		cfg = *initial
	} else {
		cfg = DefaultConfig()
	}

	// Options override config.
	if settings.dsn != "" {
		cfg.DSN = settings.dsn
	}
	if settings.scriptDir != "" {
		cfg.ScriptDir = settings.scriptDir
	}
	if settings.prefixes != nil {
		cfg.PreparePrefix = settings.prefixes.Prepare
		cfg.CleanupPrefix = settings.prefixes.Cleanup
	}

	return settings, cfg
}
