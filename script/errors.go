package script

import (
	"errors"
	"fmt"
)

var (
	// ErrContractViolation signals a defect in the code driving the reader: appending to a
	// complete partial, constructing a partial from a line that does not start it, or
	// appending after the reading context has been finished.
	ErrContractViolation = errors.New("script: contract violation")

	// ErrMalformedScript is returned when a function's accumulated text does not have the
	// `name = function() { ... }` shape.
	ErrMalformedScript = errors.New("script: malformed script")

	// ErrUnrecognizedLine is returned for content found outside any open function or comment.
	ErrUnrecognizedLine = errors.New("script: unrecognized line")
)

// ParseError locates a failure inside a script source.
type ParseError struct {
	Source string // File path or other label given by the caller; may be empty.
	Line   int    // 1-based line number; 0 when the failure is not tied to a single line.
	Text   string // Offending line or accumulated function text.
	Err    error  // One of the sentinel errors above.
}

func (e *ParseError) Error() string {
	src := e.Source
	if src == "" {
		src = "<input>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v: %q", src, e.Line, e.Err, e.Text)
	}
	return fmt.Sprintf("%s: %v: %q", src, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
