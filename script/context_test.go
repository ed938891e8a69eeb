package script

import (
	"errors"
	"fmt"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readLines drives a fresh context over lines and returns its scripts.
func readLines(t *testing.T, lines ...string) []NamedScript {
	t.Helper()
	rc := NewReadingContext()
	for _, l := range lines {
		require.NoError(t, rc.Append(l), "append %q", l)
	}
	require.NoError(t, rc.Finish())
	scripts, err := rc.Scripts()
	require.NoError(t, err)
	return scripts
}

func TestReadingContext_SingleFunction(t *testing.T) {
	scripts := readLines(t,
		`prepare4_findBooks=function(){`,
		`db.books.insert({name:"a"});`,
		`}`,
	)
	require.Len(t, scripts, 1)
	assert.Equal(t, "prepare4_findBooks", scripts[0].Name())
	assert.Equal(t, `function(){db.books.insert({name:"a"});}`, scripts[0].Body())
}

func TestReadingContext_BlockCommentBeforeFunction(t *testing.T) {
	scripts := readLines(t,
		`/* seed data`,
		`   for the books suite */`,
		`prepare4_findBooks = function() {`,
		`db.books.insert({name:"a"});`,
		`};`,
	)
	require.Len(t, scripts, 1)
	assert.Equal(t, "prepare4_findBooks", scripts[0].Name())
	assert.Equal(t, `function() {db.books.insert({name:"a"});}`, scripts[0].Body())
}

func TestReadingContext_ConsecutiveFunctionStarts(t *testing.T) {
	scripts := readLines(t,
		`prepare4_a = function() {`,
		`db.a.insert(1);`,
		`cleanup4_a = function() {`,
		`db.a.remove({});`,
		`}`,
	)
	require.Len(t, scripts, 2)
	assert.Equal(t, "prepare4_a", scripts[0].Name())
	assert.Equal(t, "function() {db.a.insert(1)", scripts[0].Body())
	assert.Equal(t, "cleanup4_a", scripts[1].Name())
	assert.Equal(t, "function() {db.a.remove({});}", scripts[1].Body())
}

func TestReadingContext_EmptyInput(t *testing.T) {
	scripts := readLines(t)
	assert.Empty(t, scripts)
	assert.NotNil(t, scripts)

	scripts = readLines(t, "", "   ", "// only a comment", "/* and a block */")
	assert.Empty(t, scripts)
}

func TestReadingContext_NestedCommentsInsideFunction(t *testing.T) {
	scripts := readLines(t,
		`cleanup4_x = function() {`,
		`/*`,
		`/* inner, closed on its own line */`,
		`still the outer comment`,
		`*/`,
		`db.x.remove({});`,
		`};`,
	)
	require.Len(t, scripts, 1)
	assert.Equal(t, "function() {db.x.remove({});}", scripts[0].Body())
}

func TestReadingContext_UnterminatedBlockCommentIsDropped(t *testing.T) {
	scripts := readLines(t,
		`prepare4_x = function() {`,
		`db.x.insert(1);`,
		`}`,
		`/* never closed`,
		`db.should.not.appear();`,
	)
	require.Len(t, scripts, 1)
	assert.Equal(t, "function() {db.x.insert(1);}", scripts[0].Body())
}

func TestReadingContext_UnterminatedCommentClosedByFunction(t *testing.T) {
	scripts := readLines(t,
		`/* opened`,
		`prepare4_x = function() {`,
		`db.x.insert(1);`,
		`}`,
	)
	require.Len(t, scripts, 1)
	assert.Equal(t, "function() {db.x.insert(1);}", scripts[0].Body())
}

func TestReadingContext_InlineCommentStripped(t *testing.T) {
	scripts := readLines(t,
		`prepare4_x = function() { // opens`,
		`db.x.insert(1); // note`,
		`}`,
	)
	require.Len(t, scripts, 1)
	assert.Equal(t, "function() {db.x.insert(1);}", scripts[0].Body())
}

func TestReadingContext_UnterminatedFunctionIsFinalized(t *testing.T) {
	scripts := readLines(t,
		`prepare4_x = function() {`,
		`db.x.insert(1);`,
	)
	require.Len(t, scripts, 1)
	assert.Equal(t, "function() {db.x.insert(1)", scripts[0].Body())
}

func TestReadingContext_CustomPrefixes(t *testing.T) {
	rc := NewReadingContext(WithContextPrefixes(Prefixes{Prepare: "before_", Cleanup: "after_"}))
	require.NoError(t, rc.Append("before_TestA = function() {"))
	require.NoError(t, rc.Append("SELECT 1;"))
	require.NoError(t, rc.Append("}"))
	require.NoError(t, rc.Finish())
	scripts, err := rc.Scripts()
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	assert.Equal(t, "before_TestA", scripts[0].Name())

	// The default prefix is plain content under custom prefixes.
	rc = NewReadingContext(WithContextPrefixes(Prefixes{Prepare: "before_", Cleanup: "after_"}))
	err = rc.Append("prepare4_TestA = function() {")
	assert.ErrorIs(t, err, ErrUnrecognizedLine)
}

func TestReadingContext_UnrecognizedLine(t *testing.T) {
	rc := NewReadingContext(WithSource("books.js"))
	require.NoError(t, rc.Append("// header"))
	err := rc.Append("var x = 1;")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnrecognizedLine))

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "books.js", perr.Source)
	assert.Equal(t, 2, perr.Line)
	assert.Equal(t, "var x = 1;", perr.Text)
	assert.Contains(t, err.Error(), "books.js:2")
}

func TestReadingContext_ContentAfterClosedComment(t *testing.T) {
	rc := NewReadingContext()
	require.NoError(t, rc.Append("/*"))
	require.NoError(t, rc.Append("*/"))
	assert.ErrorIs(t, rc.Append("stray();"), ErrUnrecognizedLine)
}

func TestReadingContext_MalformedFunction(t *testing.T) {
	rc := NewReadingContext(WithSource("bad.js"))
	require.NoError(t, rc.Append("// fine"))
	require.NoError(t, rc.Append("prepare4_x = func() {"))
	require.NoError(t, rc.Append("}"))
	require.NoError(t, rc.Finish())

	scripts, err := rc.Scripts()
	assert.Nil(t, scripts)
	require.ErrorIs(t, err, ErrMalformedScript)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line, "line of the function start")
}

func TestReadingContext_AppendAfterFinish(t *testing.T) {
	rc := NewReadingContext()
	require.NoError(t, rc.Finish())
	assert.True(t, rc.Finished())
	assert.ErrorIs(t, rc.Append("prepare4_x = function() {}"), ErrContractViolation)
	assert.ErrorIs(t, rc.Finish(), ErrContractViolation)
}

// Every opened function yields exactly one script, in opening order.
func TestReadingContext_CountAndOrder_Property(t *testing.T) {
	prop := func(methods []uint8, cleanupMask uint32) bool {
		if len(methods) > 20 {
			methods = methods[:20]
		}
		rc := NewReadingContext()
		var want []string
		for i, m := range methods {
			prefix := DefaultPreparePrefix
			if cleanupMask&(1<<uint(i)) != 0 {
				prefix = DefaultCleanupPrefix
			}
			name := fmt.Sprintf("%sm%d", prefix, m)
			want = append(want, name)
			lines := []string{
				"// " + name,
				name + " = function() {",
				"/* body */",
				fmt.Sprintf("db.c.insert(%d);", m),
			}
			if i%2 == 0 {
				lines = append(lines, "};")
			}
			for _, l := range lines {
				if rc.Append(l) != nil {
					return false
				}
			}
		}
		if rc.Finish() != nil {
			return false
		}
		scripts, err := rc.Scripts()
		if err != nil || len(scripts) != len(want) {
			return false
		}
		for i, s := range scripts {
			if s.Name() != want[i] {
				return false
			}
		}
		return true
	}
	if err := quick.Check(prop, &quick.Config{MaxCount: 200}); err != nil {
		t.Errorf("count/order property failed: %v", err)
	}
}

func TestSplitNameBody_WhitespaceInsensitive(t *testing.T) {
	normalized, err := splitNameBody("prepare4_x=function() {db.x.insert(1);}")
	require.NoError(t, err)

	for _, raw := range []string{
		"prepare4_x = function ( ) {db.x.insert(1);}",
		"prepare4_x = function() {db.x.insert(1);};",
	} {
		s, err := splitNameBody(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, normalized.Name(), s.Name(), raw)
		assert.Equal(t, normalized.Body(), s.Body(), raw)
	}
}

func TestSplitNameBody_TabsAreNotSpacing(t *testing.T) {
	_, err := splitNameBody("prepare4_x\t=\tfunction\t(\t) {db.x.insert(1);}")
	assert.ErrorIs(t, err, ErrMalformedScript)

	s, err := splitNameBody("prepare4_x =  function (  ) {\tdb.x.insert(1);}")
	require.NoError(t, err)
	assert.Equal(t, "function() {\tdb.x.insert(1);}", s.Body())
}

func TestSplitNameBody_TrailingTerminator(t *testing.T) {
	tests := []struct {
		raw  string
		body string
	}{
		{"cleanup4_x = function() {db.x.drop()}", "function() {db.x.drop()}"},
		{"cleanup4_x = function() {db.x.drop()};", "function() {db.x.drop()}"},
		{"cleanup4_x = function() {db.x.drop();};;", "function() {db.x.drop();};"},
	}
	for _, tt := range tests {
		s, err := splitNameBody(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.body, s.Body(), tt.raw)
	}
}

func TestSplitNameBody_Malformed(t *testing.T) {
	for _, raw := range []string{
		"prepare4_x = {}",
		"prepare4_x = function(a) {}",
		"= function() {}",
	} {
		_, err := splitNameBody(raw)
		assert.ErrorIs(t, err, ErrMalformedScript, raw)
	}
}

func TestPartial_Contracts(t *testing.T) {
	_, err := newLineComment("db.x()")
	assert.ErrorIs(t, err, ErrContractViolation)
	_, err = newBlockComment("// not a block")
	assert.ErrorIs(t, err, ErrContractViolation)
	_, err = newFunction("other = function() {}", DefaultPrefixes())
	assert.ErrorIs(t, err, ErrContractViolation)

	lc, err := newLineComment("// note")
	require.NoError(t, err)
	assert.True(t, lc.isComplete())
	assert.ErrorIs(t, lc.append("more"), ErrContractViolation)

	bc, err := newBlockComment("/* one line */")
	require.NoError(t, err)
	assert.True(t, bc.isComplete())

	bc, err = newBlockComment("/*")
	require.NoError(t, err)
	assert.False(t, bc.isComplete())
	require.NoError(t, bc.append("text"))
	assert.False(t, bc.isComplete())
	require.NoError(t, bc.append("end */"))
	assert.True(t, bc.isComplete())

	_, err = bc.namedScript()
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestStripTrailingComment(t *testing.T) {
	assert.Equal(t, "db.x.insert(1);", stripTrailingComment("db.x.insert(1); // note"))
	assert.Equal(t, "db.x.insert(1);", stripTrailingComment("db.x.insert(1);"))
	// Naive last-occurrence scan: a literal containing "//" is cut too.
	assert.Equal(t, `db.x.insert({u:"http:`, stripTrailingComment(`db.x.insert({u:"http://h"});`))
}
