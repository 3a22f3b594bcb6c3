package filter

import (
	"errors"
	"fmt"
	"strings"
)

// Failure classes surfaced by filters.
var (
	ErrBadInput            = errors.New("bad input")
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
	ErrIO                  = errors.New("i/o failure")
	ErrInvalidConfig       = errors.New("invalid configuration")

	// ErrNoMoreEvents is returned by Next past the end of the stream.
	ErrNoMoreEvents = errors.New("no more events")
)

// ParseError reports malformed input at a position of the decoded text.
type ParseError struct {
	Offset int
	Line   int
	Msg    string
}

// NewParseError builds a ParseError, computing the line of offset in text.
func NewParseError(text string, offset int, format string, args ...any) *ParseError {
	if offset > len(text) {
		offset = len(text)
	}
	return &ParseError{
		Offset: offset,
		Line:   strings.Count(text[:offset], "\n") + 1,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d (offset %d): %s", e.Line, e.Offset, e.Msg)
}

// Unwrap makes every ParseError match ErrBadInput.
func (e *ParseError) Unwrap() error { return ErrBadInput }

// ConfigError wraps a parameter validation failure.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
