package script

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	lineCommentStart  = "//"
	blockCommentStart = "/*"
	blockCommentEnd   = "*/"

	// nameBodyJuncture separates the function name from its body once normalized.
	nameBodyJuncture = "=function()"
)

// nameBodyJunctureRe tolerates spaces such as `name = function ( )`. Tabs are not spacing here.
var nameBodyJunctureRe = regexp.MustCompile(`= *function *\( *\)`)

type partialKind int

const (
	kindLineComment partialKind = iota + 1
	kindBlockComment
	kindFunction
)

func (k partialKind) String() string {
	switch k {
	case kindLineComment:
		return "line comment"
	case kindBlockComment:
		return "block comment"
	case kindFunction:
		return "function"
	default:
		return fmt.Sprintf("partialKind(%d)", int(k))
	}
}

// partial accumulates the lines of one structural unit of a script file.
// Lines handed to a partial are already trimmed by the reading context.
type partial struct {
	kind     partialKind
	text     strings.Builder
	complete bool
}

func newLineComment(line string) (*partial, error) {
	if !strings.HasPrefix(line, lineCommentStart) {
		return nil, fmt.Errorf("%w: line %q does not start a line comment", ErrContractViolation, line)
	}
	p := &partial{kind: kindLineComment}
	if err := p.append(line); err != nil {
		return nil, err
	}
	p.forceComplete()
	return p, nil
}

func newBlockComment(line string) (*partial, error) {
	if !strings.HasPrefix(line, blockCommentStart) {
		return nil, fmt.Errorf("%w: line %q does not start a block comment", ErrContractViolation, line)
	}
	p := &partial{kind: kindBlockComment}
	if err := p.append(line); err != nil {
		return nil, err
	}
	return p, nil
}

func newFunction(line string, prefixes Prefixes) (*partial, error) {
	if !prefixes.isFunctionStart(line) {
		return nil, fmt.Errorf("%w: line %q does not start a fixture function", ErrContractViolation, line)
	}
	p := &partial{kind: kindFunction}
	if err := p.append(line); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *partial) isComplete() bool {
	return p.complete
}

func (p *partial) forceComplete() {
	p.complete = true
}

func (p *partial) append(line string) error {
	if p.complete {
		return fmt.Errorf("%w: %s is already complete", ErrContractViolation, p.kind)
	}
	switch p.kind {
	case kindBlockComment:
		p.text.WriteString(line)
		if strings.HasSuffix(strings.TrimSpace(line), blockCommentEnd) {
			p.forceComplete()
		}
	case kindFunction:
		p.text.WriteString(stripTrailingComment(line))
	default:
		p.text.WriteString(line)
	}
	return nil
}

// stripTrailingComment drops everything from the last "//" on. It does not know about
// string literals, so a literal containing "//" is cut as well.
func stripTrailingComment(line string) string {
	idx := strings.LastIndex(line, lineCommentStart)
	if idx == -1 {
		return line
	}
	return strings.TrimRight(line[:idx], " \t")
}

// namedScript finalizes a function partial.
func (p *partial) namedScript() (NamedScript, error) {
	if p.kind != kindFunction {
		return NamedScript{}, fmt.Errorf("%w: a %s does not yield a script", ErrContractViolation, p.kind)
	}
	raw := p.text.String()
	return splitNameBody(raw)
}

// splitNameBody turns `name = function ( ) {...};` into ("name", "function() {...}").
func splitNameBody(raw string) (NamedScript, error) {
	code := raw
	if loc := nameBodyJunctureRe.FindStringIndex(code); loc != nil {
		code = code[:loc[0]] + nameBodyJuncture + code[loc[1]:]
	}
	code = strings.TrimSuffix(code, ";")

	idx := strings.Index(code, nameBodyJuncture)
	if idx == -1 {
		return NamedScript{}, fmt.Errorf("%w: missing %q in %q", ErrMalformedScript, nameBodyJuncture, raw)
	}
	name := strings.TrimSpace(code[:idx])
	if name == "" {
		return NamedScript{}, fmt.Errorf("%w: function without a name in %q", ErrMalformedScript, raw)
	}
	// Skip the '=' and keep `function() ...`.
	body := strings.TrimSpace(code[idx+1:])
	return NewNamedScript(name, body)
}
