// Package logger builds the zap logger a kit logs through.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/veiloq/fixturekit/config"
)

// LogDir receives the LOG file written when no *testing.T is available.
const LogDir = ".fixturekit"

// InitLogger returns a zaptest logger bound to t, or a development logger writing to
// stdout and LogDir/LOG when t is nil. The boolean reports a test logger.
func InitLogger(t *testing.T, settings *config.Settings) (*zap.Logger, bool, error) {
	var zapOpts []zap.Option
	if settings != nil {
		zapOpts = settings.ZapOptions()
	}

	if t != nil {
		var testOpts []zaptest.LoggerOption
		if settings != nil && settings.ZapTestLevel() != nil {
			testOpts = append(testOpts, zaptest.Level(*settings.ZapTestLevel()))
		}
		if len(zapOpts) > 0 {
			testOpts = append(testOpts, zaptest.WrapOptions(zapOpts...))
		}
		logger := zaptest.NewLogger(t, testOpts...)
		logger.Debug("Initialized zaptest logger")
		return logger, true, nil
	}

	if err := os.MkdirAll(LogDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("failed to create log directory %s: %w", LogDir, err)
	}
	logFile := filepath.Join(LogDir, "LOG")

	devConfig := zap.NewDevelopmentConfig()
	devConfig.OutputPaths = []string{"stdout", logFile}
	devConfig.ErrorOutputPaths = []string{"stderr", logFile}

	logger, err := devConfig.Build(zapOpts...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create default zap logger: %w", err)
	}
	logger.Debug("Initialized default zap development logger (no *testing.T provided)")
	return logger, false, nil
}
