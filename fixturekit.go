package fixturekit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/veiloq/fixturekit/config"
	"github.com/veiloq/fixturekit/connection"
	"github.com/veiloq/fixturekit/executor"
	"github.com/veiloq/fixturekit/fixture"
	"github.com/veiloq/fixturekit/internal/cleanup"
	"github.com/veiloq/fixturekit/internal/logger"
	"github.com/veiloq/fixturekit/script"
)

// FixtureKit is the Kit returned by NewKit.
type FixtureKit struct {
	config   config.Config
	suite    string
	set      *fixture.Set
	registry *fixture.Registry
	executor executor.Executor
	pool     *pgxpool.Pool
	db       *sql.DB
	logger   *zap.Logger
	cleanup  *cleanup.Manager
}

// AttendOption switches one phase of Attend off.
type AttendOption func(*attendOptions)

type attendOptions struct {
	prepare bool
	cleanup bool
}

// WithoutPrepare skips the prepare script.
func WithoutPrepare() AttendOption {
	return func(o *attendOptions) { o.prepare = false }
}

// WithoutCleanup skips the cleanup script.
func WithoutCleanup() AttendOption {
	return func(o *attendOptions) { o.cleanup = false }
}

// Suite returns the suite the scripts were read for.
func (k *FixtureKit) Suite() string {
	return k.suite
}

// Scripts returns the scripts of the suite.
func (k *FixtureKit) Scripts() *fixture.Set {
	return k.set
}

// Pool returns the pgx pool, or nil.
func (k *FixtureKit) Pool() *pgxpool.Pool {
	return k.pool
}

// DB returns the database/sql handle, or nil.
func (k *FixtureKit) DB() *sql.DB {
	return k.db
}

// Cleanup executes all registered cleanup steps in reverse order.
func (k *FixtureKit) Cleanup() error {
	return k.cleanup.Execute()
}

// Execute runs the named script of the suite.
func (k *FixtureKit) Execute(ctx context.Context, name string) error {
	s, ok := k.set.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q in %s", fixture.ErrScriptNotFound, name, k.set.Source())
	}
	return k.run(ctx, s)
}

func (k *FixtureKit) run(ctx context.Context, s script.NamedScript) error {
	if err := k.executor.Execute(ctx, s, k.logger); err != nil {
		return err
	}
	k.logger.Info("Executed fixture script", zap.String("script", s.Name()))
	return nil
}

// Attend runs the prepare script for the method named by t now and the cleanup script
// when t finishes. The method is the last segment of t.Name(), so a subtest
// "TestBooksRepo/findBooks" uses prepare4_findBooks and cleanup4_findBooks.
func (k *FixtureKit) Attend(ctx context.Context, t testing.TB, opts ...AttendOption) {
	t.Helper()
	o := attendOptions{prepare: true, cleanup: true}
	for _, opt := range opts {
		opt(&o)
	}
	_, method := fixture.SplitTestName(t.Name())

	// Both scripts are looked up first so a missing cleanup fails before data is written.
	var prepare, clean script.NamedScript
	var err error
	if o.prepare {
		if prepare, err = k.registry.Script(k.suite, script.PhasePrepare, method); err != nil {
			t.Fatalf("fixturekit: prepare script for %s: %v", t.Name(), err)
			return
		}
	}
	if o.cleanup {
		if clean, err = k.registry.Script(k.suite, script.PhaseCleanup, method); err != nil {
			t.Fatalf("fixturekit: cleanup script for %s: %v", t.Name(), err)
			return
		}
	}

	if o.prepare {
		if err := k.run(ctx, prepare); err != nil {
			t.Fatalf("fixturekit: %v", err)
			return
		}
	}
	if o.cleanup {
		cleanupCtx := context.WithoutCancel(ctx)
		t.Cleanup(func() {
			if err := k.run(cleanupCtx, clean); err != nil {
				t.Errorf("fixturekit: %v", err)
			}
		})
	}
}

// NewKit reads the fixture scripts of a suite and prepares to run them against the
// database named by cfg.DSN.
//
// The suite is the top-level name of t unless config.WithSuite is given; its scripts
// are read from <ScriptDir>/<suite><Extension> unless config.WithScriptFile is given.
// Connections are opened when cfg.DSN is set, and are required unless
// config.WithExecutor supplies an executor. After connecting, the after-connection hook
// and the migrator run in that order.
//
// With a non-nil t, Cleanup is registered through t.Cleanup.
func NewKit(ctx context.Context, t *testing.T, initialConfig config.Config, opts ...config.Option) (_ Kit, err error) {
	options, cfg := config.ApplyOptions(&initialConfig, opts...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration provided: %w", err)
	}

	suite := options.Suite()
	if suite == "" {
		if t == nil {
			return nil, errors.New("a suite name is required when no *testing.T is given (use config.WithSuite)")
		}
		suite, _ = fixture.SplitTestName(t.Name())
	}

	log, _, err := logger.InitLogger(t, options)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	k := &FixtureKit{
		config:   cfg,
		suite:    suite,
		registry: options.Registry(),
		executor: options.Executor(),
		logger:   log,
		cleanup:  cleanup.NewManager(log),
	}
	defer func() {
		if err != nil {
			if cleanupErr := k.Cleanup(); cleanupErr != nil {
				k.logger.Error("Error during cleanup after setup failure", zap.Error(cleanupErr))
			}
		}
	}()

	k.logger = k.logger.With(zap.String("suite", k.suite))

	if k.executor == nil && cfg.DSN == "" {
		return nil, errors.New("no DSN configured and no executor supplied")
	}
	if cfg.DSN != "" {
		if err = k.connect(ctx, options); err != nil {
			return nil, err
		}
	}
	if k.executor == nil {
		switch cfg.Executor {
		case config.ExecutorSQL:
			k.executor = executor.NewSQLExecutor(k.db, cfg.ExecTimeout)
		default:
			k.executor = executor.NewPoolExecutor(k.pool, cfg.ExecTimeout)
		}
	}

	path := options.ScriptFile()
	if path == "" {
		path = script.ScriptPath(cfg.ScriptDir, k.suite, cfg.Extension)
	}
	reader := script.NewReader(k.logger, script.WithPrefixes(cfg.Prefixes()))
	scripts, err := reader.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture scripts of %s: %w", k.suite, err)
	}
	k.set = fixture.NewSet(path, scripts, cfg.Prefixes())

	if k.registry == nil {
		k.registry = fixture.NewRegistry()
	}
	k.registry.Put(suite, k.set)
	set := k.set
	k.cleanup.Add("unregister suite", func() error {
		k.registry.CompareAndRemove(suite, set)
		return nil
	})

	if t != nil {
		t.Cleanup(func() {
			if cleanupErr := k.Cleanup(); cleanupErr != nil {
				t.Errorf("Error during automatic fixturekit cleanup: %v", cleanupErr)
			}
		})
	} else {
		k.logger.Warn("t *testing.T was nil; caller MUST call Cleanup() manually (e.g., using defer)")
	}

	k.logger.Info("Fixture kit ready", zap.String("file", path), zap.Int("scripts", k.set.Len()))
	return k, nil
}

func (k *FixtureKit) connect(ctx context.Context, options *config.Settings) error {
	handles, err := connection.Open(ctx, k.config.DSN, k.logger)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	k.pool, k.db = handles.Pool, handles.DB
	k.cleanup.Add("close pgx pool", connection.ClosePool(&k.pool, k.logger))
	k.cleanup.Add("close sql.DB", connection.CloseDB(&k.db, k.logger))

	if hook := options.AfterConnectionHook(); hook != nil {
		k.logger.Debug("Running afterConnectionHook...")
		if err := hook(ctx, k.db, k.pool, k.logger); err != nil {
			return fmt.Errorf("afterConnectionHook failed: %w", err)
		}
	}

	if err := options.Migrator().Apply(ctx, k.pool, k.logger); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
