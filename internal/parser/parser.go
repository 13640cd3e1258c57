package parser

import (
	"context"
	"fmt"
	"io"
)

// Parser is the strategy interface for statement file parsers.
type Parser interface {
	// Name returns the parser identifier (e.g., "ofx", "csv"). The
	// identifier doubles as the provider tag suffix for accounts created
	// by the importer.
	Name() string

	// CanParse checks if this parser should handle the file, based on the
	// declared filename/type and the first bytes of content.
	CanParse(filename string, header []byte) bool

	// Parse extracts raw records from the file, preserving encounter
	// order. Structural failure (empty file, missing mandatory columns)
	// is reported as a *FormatError.
	Parse(ctx context.Context, r io.Reader) ([]RawRecord, error)
}

// RawRecord is one statement line as found in the source file, before any
// normalization. All fields are unvalidated strings; Date and Amount are
// mandatory downstream, the rest optional. Records live only between
// parsing and normalization.
type RawRecord struct {
	Date          string
	Amount        string
	Description   string
	Counterpart   string // Merchant/payee name, when the source carries one.
	CurrencyHint  string
	DirectionHint string // "credit"/"debit"/raw source token, empty when unset.
	NaturalID     string // Source-provided stable id (OFX FITID), empty otherwise.
	Line          int    // 1-based position in the source file, for error messages.
}

// FormatError reports a structurally unparseable file: empty content,
// unparseable framing, or missing mandatory columns. It is batch-fatal and
// raised before any row is processed.
type FormatError struct {
	Format string // Parser name that rejected the file.
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", e.Format, e.Reason)
}

// NewFormatError creates a FormatError for the given parser.
func NewFormatError(format, reason string, args ...any) *FormatError {
	return &FormatError{Format: format, Reason: fmt.Sprintf(reason, args...)}
}
