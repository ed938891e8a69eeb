package fixture

import (
	"fmt"
	"sort"
	"sync"

	"github.com/veiloq/fixturekit/script"
)

// Registry maps suite names to their loaded Sets. Parallel tests may share one Registry.
// The zero value is ready to use.
type Registry struct {
	mu   sync.RWMutex
	sets map[string]*Set
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[string]*Set)}
}

// Put registers set for suite, replacing any previous one.
func (r *Registry) Put(suite string, set *Set) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sets == nil {
		r.sets = make(map[string]*Set)
	}
	r.sets[suite] = set
}

// Get returns the Set registered for suite.
func (r *Registry) Get(suite string) (*Set, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.sets[suite]
	return set, ok
}

// Remove forgets suite. Removing an unknown suite is a no-op.
func (r *Registry) Remove(suite string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sets, suite)
}

// CompareAndRemove forgets suite only while it is still registered to set, and reports
// whether it did. A kit uses it so that its cleanup leaves a newer Set of the same suite alone.
func (r *Registry) CompareAndRemove(suite string, set *Set) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sets[suite]; !ok || cur != set {
		return false
	}
	delete(r.sets, suite)
	return true
}

// Suites returns the registered suite names, sorted.
func (r *Registry) Suites() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sets))
	for name := range r.sets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Script resolves the script of a suite's method for phase.
func (r *Registry) Script(suite string, phase script.Phase, method string) (script.NamedScript, error) {
	set, ok := r.Get(suite)
	if !ok {
		return script.NamedScript{}, fmt.Errorf("%w: %q", ErrSuiteNotLoaded, suite)
	}
	return set.Script(phase, method)
}
