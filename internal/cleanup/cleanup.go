// Package cleanup collects the teardown steps of a kit and runs them once, last in first out.
package cleanup

import (
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Func is one teardown step.
type Func func() error

type step struct {
	name string
	fn   Func
}

// Manager manages the stack of cleanup steps.
type Manager struct {
	mu     sync.Mutex
	steps  []step
	err    error
	logger *zap.Logger
	once   sync.Once
}

// NewManager creates a new cleanup manager. A nil logger discards log output.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// Add pushes a step. Nil steps are ignored.
func (m *Manager) Add(name string, f Func) {
	if f == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{name: name, fn: f})
}

// Len returns the number of registered steps.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}

// Execute runs every step in reverse order of registration. A failing step does not
// stop the others; all errors are combined. Later calls return the first result.
func (m *Manager) Execute() error {
	m.once.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.logger.Debug("Starting cleanup process...", zap.Int("steps", len(m.steps)))
		for i := len(m.steps) - 1; i >= 0; i-- {
			s := m.steps[i]
			if err := s.fn(); err != nil {
				m.logger.Error("Cleanup step failed", zap.String("step", s.name), zap.Error(err))
				m.err = multierr.Append(m.err, err)
			}
		}
		m.logger.Debug("Cleanup process finished.")

		_ = m.logger.Sync()
	})
	return m.err
}
