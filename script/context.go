package script

import (
	"fmt"
	"strings"
)

// ReadingContext folds the lines of one script file into named scripts.
//
// Only the innermost open partial ever receives lines. Block comments can nest inside a
// function (or inside each other); they are kept on a small stack until their closing
// marker. Every function ever opened is kept in order for Scripts, since finalization
// happens only after the whole input has been seen.
//
// A ReadingContext is meant to be driven by a single goroutine and then discarded.
type ReadingContext struct {
	prefixes  Prefixes
	source    string
	functions []*partial // append-only, in opening order
	comments  []*partial // open block comments, innermost last
	funcLines []int      // starting line of each entry in functions
	line      int
	finished  bool
}

// ContextOption configures a ReadingContext.
type ContextOption func(*ReadingContext)

// WithContextPrefixes overrides the function name prefixes.
func WithContextPrefixes(p Prefixes) ContextOption {
	return func(rc *ReadingContext) { rc.prefixes = p }
}

// WithSource labels parse errors with a file path or other identifier.
func WithSource(source string) ContextOption {
	return func(rc *ReadingContext) { rc.source = source }
}

// NewReadingContext returns an empty context using DefaultPrefixes.
func NewReadingContext(opts ...ContextOption) *ReadingContext {
	rc := &ReadingContext{prefixes: DefaultPrefixes()}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// current returns the open partial receiving continuation lines, or nil.
func (rc *ReadingContext) current() *partial {
	if n := len(rc.comments); n > 0 {
		return rc.comments[n-1]
	}
	if n := len(rc.functions); n > 0 && !rc.functions[n-1].isComplete() {
		return rc.functions[n-1]
	}
	return nil
}

// Append routes one raw line of input.
func (rc *ReadingContext) Append(raw string) error {
	if rc.finished {
		return fmt.Errorf("%w: append after reading finished", ErrContractViolation)
	}
	rc.line++
	line := strings.TrimSpace(raw)

	switch {
	case line == "":
		return nil

	case strings.HasPrefix(line, lineCommentStart):
		// Consumed here; line comments never reach the log.
		if _, err := newLineComment(line); err != nil {
			return rc.lineError(line, err)
		}
		return nil

	case strings.HasPrefix(line, blockCommentStart):
		c, err := newBlockComment(line)
		if err != nil {
			return rc.lineError(line, err)
		}
		if !c.isComplete() {
			rc.comments = append(rc.comments, c)
		}
		return nil

	case rc.prefixes.isFunctionStart(line):
		if cur := rc.current(); cur != nil {
			cur.forceComplete()
		}
		// Nothing below the new function is ever current again.
		rc.closeAll()
		f, err := newFunction(line, rc.prefixes)
		if err != nil {
			return rc.lineError(line, err)
		}
		rc.functions = append(rc.functions, f)
		rc.funcLines = append(rc.funcLines, rc.line)
		return nil
	}

	cur := rc.current()
	if cur == nil {
		return rc.lineError(line, ErrUnrecognizedLine)
	}
	if err := cur.append(line); err != nil {
		return rc.lineError(line, err)
	}
	if cur.kind == kindBlockComment && cur.isComplete() {
		rc.comments = rc.comments[:len(rc.comments)-1]
	}
	return nil
}

// Finish signals the end of input. An open function is finalized as it stands; an open
// block comment is dropped without error.
func (rc *ReadingContext) Finish() error {
	if rc.finished {
		return fmt.Errorf("%w: reading already finished", ErrContractViolation)
	}
	rc.finished = true
	if cur := rc.current(); cur != nil {
		cur.forceComplete()
	}
	rc.closeAll()
	return nil
}

// Finished reports whether Finish has been called.
func (rc *ReadingContext) Finished() bool {
	return rc.finished
}

// Scripts returns one NamedScript per function, in the order the functions were opened.
func (rc *ReadingContext) Scripts() ([]NamedScript, error) {
	scripts := make([]NamedScript, 0, len(rc.functions))
	for i, f := range rc.functions {
		s, err := f.namedScript()
		if err != nil {
			return nil, &ParseError{Source: rc.source, Line: rc.funcLines[i], Text: f.text.String(), Err: err}
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

func (rc *ReadingContext) closeAll() {
	for _, c := range rc.comments {
		c.forceComplete()
	}
	rc.comments = rc.comments[:0]
	if n := len(rc.functions); n > 0 {
		rc.functions[n-1].forceComplete()
	}
}

func (rc *ReadingContext) lineError(line string, err error) error {
	return &ParseError{Source: rc.source, Line: rc.line, Text: line, Err: err}
}
