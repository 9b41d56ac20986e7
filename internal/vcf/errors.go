package vcf

import (
	"errors"
	"fmt"
)

// Error kinds shared by the readers in this module. Concrete errors unwrap
// to one of these so callers can classify failures with errors.Is.
var (
	// ErrMalformedRecord reports a data line that cannot be parsed.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrHeaderInconsistency reports an unusable or contradictory header.
	ErrHeaderInconsistency = errors.New("header inconsistency")
)

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
	Text    string // offending input line, if any
}

func (e *ParseError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("vcf parse error at line %d: %s\n\t%s", e.Line, e.Message, e.Text)
}

func (e *ParseError) Unwrap() error { return ErrMalformedRecord }

// HeaderError reports a header that is missing required lines or carries
// declarations that do not parse.
type HeaderError struct {
	Line    int
	Message string
}

func (e *HeaderError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("vcf header error at line %d: %s", e.Line, e.Message)
	}
	return "vcf header error: " + e.Message
}

func (e *HeaderError) Unwrap() error { return ErrHeaderInconsistency }
