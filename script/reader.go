package script

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"go.uber.org/zap"
)

// DefaultExtension is the file extension of fixture script files.
const DefaultExtension = ".js"

// maxLineSize bounds a single script line.
const maxLineSize = 1 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader loads fixture script files. It holds no per-read state and can be shared.
type Reader struct {
	prefixes Prefixes
	logger   *zap.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithPrefixes sets the function name prefixes recognized by the reader.
func WithPrefixes(p Prefixes) ReaderOption {
	return func(r *Reader) { r.prefixes = p }
}

// NewReader creates a Reader. A nil logger discards log output.
func NewReader(logger *zap.Logger, opts ...ReaderOption) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reader{
		prefixes: DefaultPrefixes(),
		logger:   logger.With(zap.String("component", "script_reader")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prefixes returns the prefixes the reader recognizes.
func (r *Reader) Prefixes() Prefixes {
	return r.prefixes
}

// ScriptPath returns the path of the script file belonging to suite, e.g.
// ScriptPath("testdata", "TestBooksRepo", ".js") == "testdata/TestBooksRepo.js".
func ScriptPath(dir, suite, ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	return filepath.Join(dir, suite+ext)
}

// ReadFor reads the script file of a test suite from dir.
func (r *Reader) ReadFor(dir, suite, ext string) ([]NamedScript, error) {
	return r.ReadFile(ScriptPath(dir, suite, ext))
}

// ReadFile reads and parses the script file at path.
func (r *Reader) ReadFile(path string) ([]NamedScript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script file %q: %w", path, err)
	}
	defer f.Close()

	scripts, err := r.Read(f, path)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Read fixture script file", zap.String("path", path), zap.Int("scripts", len(scripts)))
	return scripts, nil
}

// Read parses UTF-8 script text from src. source labels errors and logs.
func (r *Reader) Read(src io.Reader, source string) ([]NamedScript, error) {
	rc := NewReadingContext(WithContextPrefixes(r.prefixes), WithSource(source))

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if first {
			line = bytes.TrimPrefix(line, utf8BOM)
			first = false
		}
		if !utf8.Valid(line) {
			return nil, fmt.Errorf("script %q is not valid UTF-8 near line %d", source, rc.line+1)
		}
		if err := rc.Append(string(line)); err != nil {
			r.logger.Debug("Failed to parse script line", zap.String("source", source), zap.Error(err))
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error while reading script %q: %w", source, err)
	}
	if err := rc.Finish(); err != nil {
		return nil, err
	}

	return rc.Scripts()
}
