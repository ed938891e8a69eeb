package script

import (
	"fmt"
	"strings"
)

// NamedScript is a fixture function extracted from a script file. Values are immutable
// once created and safe to share.
type NamedScript struct {
	name string
	body string
}

// NewNamedScript returns a NamedScript. Both name and body must contain non-space text.
func NewNamedScript(name, body string) (NamedScript, error) {
	if strings.TrimSpace(name) == "" {
		return NamedScript{}, fmt.Errorf("%w: script name must not be empty", ErrContractViolation)
	}
	if strings.TrimSpace(body) == "" {
		return NamedScript{}, fmt.Errorf("%w: body of script %q must not be empty", ErrContractViolation, name)
	}
	return NamedScript{name: name, body: body}, nil
}

// Name returns the script name including its phase prefix.
func (s NamedScript) Name() string {
	return s.name
}

// Body returns the function text starting at `function()`, braces included.
func (s NamedScript) Body() string {
	return s.body
}

// Statements returns the text between the outermost braces of the body, trimmed.
// A body without braces is returned whole.
func (s NamedScript) Statements() string {
	open := strings.Index(s.body, "{")
	end := strings.LastIndex(s.body, "}")
	if open == -1 || end <= open {
		return strings.TrimSpace(s.body)
	}
	return strings.TrimSpace(s.body[open+1 : end])
}

// Phase reports the phase this script belongs to under the given prefixes.
func (s NamedScript) Phase(p Prefixes) (Phase, bool) {
	return p.PhaseOf(s.name)
}

func (s NamedScript) String() string {
	return s.name
}
