// Package registry selects the parser for a statement file.
package registry

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/solufin/extrato/internal/parser"
	"github.com/solufin/extrato/internal/parsers/csvstmt"
	"github.com/solufin/extrato/internal/parsers/ofx"
)

// headerSize is how much of the file is read for format detection.
// Sufficient to detect magic markers in common statement formats.
const headerSize = 512

// ErrNoParser marks an unrecognized statement format or declared type.
// The file was never opened for parsing.
var ErrNoParser = errors.New("no parser for statement")

// Registry holds all registered parsers in probe order. OFX comes
// before CSV because the CSV parser accepts almost anything as a
// fallback.
type Registry struct {
	parsers []parser.Parser
}

// New creates a registry with all built-in parsers.
func New() *Registry {
	return &Registry{
		parsers: []parser.Parser{
			ofx.NewParser(),
			csvstmt.NewParser(),
		},
	}
}

// Register adds a custom parser (for extensibility).
func (r *Registry) Register(p parser.Parser) {
	r.parsers = append(r.parsers, p)
}

// Lookup returns a parser by its declared name ("csv", "ofx").
func (r *Registry) Lookup(name string) (parser.Parser, bool) {
	for _, p := range r.parsers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Select returns the best parser for an in-memory file. A non-empty
// declaredType wins over sniffing; an unknown declaredType is an error
// rather than a silent fallback.
func (r *Registry) Select(filename, declaredType string, content []byte) (parser.Parser, error) {
	if declaredType != "" {
		p, ok := r.Lookup(declaredType)
		if !ok {
			return nil, fmt.Errorf("unknown statement type %q: %w", declaredType, ErrNoParser)
		}
		return p, nil
	}

	header := content
	if len(header) > headerSize {
		header = header[:headerSize]
	}
	for _, p := range r.parsers {
		if p.CanParse(filename, header) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no parser found for file %s: %w", filename, ErrNoParser)
}

// FindParser returns the best parser for a file on disk. Reads the
// first 512 bytes for format detection via header inspection.
func (r *Registry) FindParser(path string) (parser.Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, headerSize)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	// EOF is OK - small statement files may be shorter than the probe.
	return r.Select(path, "", header[:n])
}

// ListParsers returns the names of all registered parsers.
func (r *Registry) ListParsers() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Name()
	}
	return names
}
