// Package fixture keeps the scripts read from fixture files and answers which script a
// test method runs before and after itself. State lives in values held by the caller;
// there is no package-level registry.
package fixture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/veiloq/fixturekit/script"
)

var (
	// ErrSuiteNotLoaded is returned when no script file was registered for a suite.
	ErrSuiteNotLoaded = errors.New("fixture: suite not loaded")
	// ErrScriptNotFound is returned when a suite has no script with the requested name.
	ErrScriptNotFound = errors.New("fixture: script not found")
)

// Set holds the scripts of one fixture file, addressable by name.
type Set struct {
	source   string
	prefixes script.Prefixes
	byName   map[string]script.NamedScript
	order    []string
}

// NewSet indexes scripts by name. When two scripts share a name the later one wins,
// keeping the position of the first.
func NewSet(source string, scripts []script.NamedScript, prefixes script.Prefixes) *Set {
	s := &Set{
		source:   source,
		prefixes: prefixes,
		byName:   make(map[string]script.NamedScript, len(scripts)),
		order:    make([]string, 0, len(scripts)),
	}
	for _, sc := range scripts {
		if _, dup := s.byName[sc.Name()]; !dup {
			s.order = append(s.order, sc.Name())
		}
		s.byName[sc.Name()] = sc
	}
	return s
}

// Source returns the path or label the scripts were read from.
func (s *Set) Source() string { return s.source }

// Len returns the number of distinct script names.
func (s *Set) Len() int { return len(s.order) }

// Names returns script names in file order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Lookup returns the script called name.
func (s *Set) Lookup(name string) (script.NamedScript, bool) {
	sc, ok := s.byName[name]
	return sc, ok
}

// Script returns the script of method for the given phase.
func (s *Set) Script(phase script.Phase, method string) (script.NamedScript, error) {
	name := s.prefixes.ScriptName(phase, method)
	sc, ok := s.byName[name]
	if !ok {
		return script.NamedScript{}, fmt.Errorf("%w: %s script %q for method %q in %s",
			ErrScriptNotFound, phase, name, method, s.source)
	}
	return sc, nil
}

// Prepare returns the script that runs before method.
func (s *Set) Prepare(method string) (script.NamedScript, error) {
	return s.Script(script.PhasePrepare, method)
}

// Cleanup returns the script that runs after method.
func (s *Set) Cleanup(method string) (script.NamedScript, error) {
	return s.Script(script.PhaseCleanup, method)
}

// SplitTestName maps a Go test name onto the suite whose file holds the scripts and the
// method the scripts are named after. "TestBooks/findBooks" gives ("TestBooks", "findBooks");
// nested subtests use their last element. A top-level name is both suite and method.
func SplitTestName(name string) (suite, method string) {
	first := strings.Index(name, "/")
	if first == -1 {
		return name, name
	}
	return name[:first], name[strings.LastIndex(name, "/")+1:]
}
