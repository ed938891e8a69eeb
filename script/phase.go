package script

import "strings"

// Phase tells whether a named script runs before or after a test.
type Phase int

const (
	PhasePrepare Phase = iota + 1
	PhaseCleanup
)

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "prepare"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// Default name prefixes of fixture functions.
const (
	DefaultPreparePrefix = "prepare4_"
	DefaultCleanupPrefix = "cleanup4_"
)

// Prefixes holds the two literal prefixes that mark a line as the start of a fixture function.
type Prefixes struct {
	Prepare string
	Cleanup string
}

// DefaultPrefixes returns the prepare4_/cleanup4_ convention.
func DefaultPrefixes() Prefixes {
	return Prefixes{Prepare: DefaultPreparePrefix, Cleanup: DefaultCleanupPrefix}
}

// Valid reports whether both prefixes are set and distinct.
func (p Prefixes) Valid() bool {
	return p.Prepare != "" && p.Cleanup != "" && p.Prepare != p.Cleanup
}

// ScriptName composes the script name of a test method for the given phase,
// e.g. ScriptName(PhasePrepare, "findBooks") == "prepare4_findBooks".
func (p Prefixes) ScriptName(phase Phase, method string) string {
	if phase == PhaseCleanup {
		return p.Cleanup + method
	}
	return p.Prepare + method
}

// PhaseOf reports the phase denoted by name's prefix.
func (p Prefixes) PhaseOf(name string) (Phase, bool) {
	switch {
	case strings.HasPrefix(name, p.Prepare):
		return PhasePrepare, true
	case strings.HasPrefix(name, p.Cleanup):
		return PhaseCleanup, true
	}
	return 0, false
}

// isFunctionStart expects a trimmed line.
func (p Prefixes) isFunctionStart(line string) bool {
	return strings.HasPrefix(line, p.Prepare) || strings.HasPrefix(line, p.Cleanup)
}
