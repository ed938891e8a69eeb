package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNamedScript_RequiresText(t *testing.T) {
	_, err := NewNamedScript("", "function() {}")
	assert.ErrorIs(t, err, ErrContractViolation)
	_, err = NewNamedScript("prepare4_x", "  ")
	assert.ErrorIs(t, err, ErrContractViolation)

	s, err := NewNamedScript("prepare4_x", "function() {}")
	require.NoError(t, err)
	assert.Equal(t, "prepare4_x", s.String())
}

func TestNamedScript_Statements(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"function() {INSERT INTO books (name) VALUES ('a');}", "INSERT INTO books (name) VALUES ('a');"},
		{"function() { if (x) { y(); } }", "if (x) { y(); }"},
		{"function() {}", ""},
		{"function() {db.a.insert(1)", "function() {db.a.insert(1)"},
		{"SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		s, err := NewNamedScript("prepare4_x", tt.body)
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.Statements(), tt.body)
	}
}

func TestPrefixes(t *testing.T) {
	p := DefaultPrefixes()
	assert.True(t, p.Valid())
	assert.False(t, Prefixes{Prepare: "x_", Cleanup: "x_"}.Valid())
	assert.False(t, Prefixes{Prepare: "x_"}.Valid())

	assert.Equal(t, "prepare4_findBooks", p.ScriptName(PhasePrepare, "findBooks"))
	assert.Equal(t, "cleanup4_findBooks", p.ScriptName(PhaseCleanup, "findBooks"))

	phase, ok := p.PhaseOf("cleanup4_findBooks")
	require.True(t, ok)
	assert.Equal(t, PhaseCleanup, phase)
	assert.Equal(t, "cleanup", phase.String())

	_, ok = p.PhaseOf("findBooks")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Phase(0).String())
}
