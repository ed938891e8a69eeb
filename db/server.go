// Package db runs a throwaway PostgreSQL server for fixture tests and creates the
// databases those tests seed.
package db

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"go.uber.org/zap"

	"github.com/veiloq/fixturekit/connection"
)

// ServerConfig configures StartServer.
type ServerConfig struct {
	Version      embeddedpostgres.PostgresVersion // Default V16.
	Host         string                           // Default "localhost".
	Port         uint32                           // 0 picks a free port.
	Username     string                           // Default "postgres".
	Password     string                           // Default "postgres".
	Database     string                           // Admin database. Default "postgres".
	RuntimeDir   string                           // Empty uses a temporary directory removed by Stop.
	BinariesPath string                           // Optional cache of extracted binaries.
	StartTimeout time.Duration                    // Default 45s.
	Logger       io.Writer                        // Server output. Nil discards it.
}

// DefaultServerConfig returns the settings used for zero fields.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Version:      embeddedpostgres.V16,
		Host:         "localhost",
		Username:     "postgres",
		Password:     "postgres",
		Database:     "postgres",
		StartTimeout: 45 * time.Second,
	}
}

func (c ServerConfig) withDefaults() ServerConfig {
	d := DefaultServerConfig()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.Username == "" {
		c.Username = d.Username
	}
	if c.Password == "" {
		c.Password = d.Password
	}
	if c.Database == "" {
		c.Database = d.Database
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = d.StartTimeout
	}
	return c
}

// DSN returns the URL connection string for database on the configured server.
func (c ServerConfig) DSN(database string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.FormatUint(uint64(c.Port), 10)),
		Path:     "/" + database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Server is a running embedded PostgreSQL instance.
type Server struct {
	pg      *embeddedpostgres.EmbeddedPostgres
	cfg     ServerConfig
	tempDir string
	logger  *zap.Logger
}

// StartServer starts an embedded PostgreSQL server. It blocks until the server accepts
// connections or cfg.StartTimeout passes.
func StartServer(ctx context.Context, cfg ServerConfig, logger *zap.Logger) (*Server, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	if cfg.Port == 0 {
		port, err := connection.GetFreePort(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("failed to get free port: %w", err)
		}
		cfg.Port = uint32(port)
		logger.Info("Assigned random free port", zap.Uint32("port", cfg.Port))
	}

	var tempDir string
	if cfg.RuntimeDir == "" {
		dir, err := os.MkdirTemp("", "fixturekit-pg-")
		if err != nil {
			return nil, fmt.Errorf("failed to create runtime directory: %w", err)
		}
		tempDir, cfg.RuntimeDir = dir, dir
	}

	pgConfig := embeddedpostgres.DefaultConfig().
		Version(cfg.Version).
		Port(cfg.Port).
		Database(cfg.Database).
		Username(cfg.Username).
		Password(cfg.Password).
		RuntimePath(cfg.RuntimeDir).
		StartTimeout(cfg.StartTimeout).
		Logger(cfg.Logger)
	if cfg.BinariesPath != "" {
		pgConfig = pgConfig.BinariesPath(cfg.BinariesPath)
	}

	pg := embeddedpostgres.NewDatabase(pgConfig)
	logger.Info("Starting embedded postgres server...", zap.Uint32("port", cfg.Port), zap.String("version", string(cfg.Version)))
	if err := pg.Start(); err != nil {
		if tempDir != "" {
			_ = os.RemoveAll(tempDir)
		}
		return nil, fmt.Errorf("failed to start embedded postgres: %w", err)
	}
	logger.Info("Embedded postgres server started successfully.")

	return &Server{pg: pg, cfg: cfg, tempDir: tempDir, logger: logger}, nil
}

// Config returns the effective configuration, port included.
func (s *Server) Config() ServerConfig {
	return s.cfg
}

// DSN returns the connection string of the admin database.
func (s *Server) DSN() string {
	return s.cfg.DSN(s.cfg.Database)
}

// Stop shuts the server down and removes a temporary runtime directory.
func (s *Server) Stop() error {
	s.logger.Debug("Stopping embedded postgres server...")
	if err := s.pg.Stop(); err != nil {
		return fmt.Errorf("error stopping embedded postgres: %w", err)
	}
	if s.tempDir != "" {
		if err := os.RemoveAll(s.tempDir); err != nil {
			s.logger.Warn("Failed to remove runtime directory", zap.String("dir", s.tempDir), zap.Error(err))
		}
	}
	s.logger.Debug("Embedded postgres server stopped successfully.")
	return nil
}
