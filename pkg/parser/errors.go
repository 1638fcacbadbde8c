package parser

import (
	"errors"
	"fmt"
)

// ParseError reports malformed input: broken tag syntax, duplicate ids,
// unknown field kinds, colliding option ids, or values that cannot be coerced
// to their declared kind. Parsing never recovers partially; the first error
// aborts the attempt.
type ParseError struct {
	// Line is 1-based; 0 means the location is unknown.
	Line int
	// Col is 1-based; 0 means the column is unknown.
	Col int
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Col > 0:
		return fmt.Sprintf("parser: line %d, col %d: %s", e.Line, e.Col, e.Msg)
	case e.Line > 0:
		return fmt.Sprintf("parser: line %d: %s", e.Line, e.Msg)
	default:
		return "parser: " + e.Msg
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// AsParseError unwraps err to a *ParseError when possible.
func AsParseError(err error) (*ParseError, bool) {
	var perr *ParseError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

func errorf(line int, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

func wrapf(line int, err error, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...) + ": " + err.Error(), Err: err}
}
