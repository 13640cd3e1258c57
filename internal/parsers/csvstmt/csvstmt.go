// Package csvstmt provides header-driven CSV statement parsing.
//
// The first line is read as a header row and columns are located by
// case-insensitive substring matching against a small synonym set, so the
// same parser accepts exports labeled in English ("date", "amount") or
// Portuguese ("data", "valor"). Only a date column and an amount column are
// mandatory; everything else degrades to empty.
package csvstmt

import (
	"context"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/solufin/extrato/internal/parser"
)

// Parser implements CSV parsing with a stateless design. The struct has no
// fields; each call operates solely on the input data, so the shared
// instance is safe for concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared CSV parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "csv"
}

// columnSynonyms maps a column concept to the substrings that identify it
// in a header cell. Matching is case-insensitive and first-wins in header
// order; a header cell is claimed by at most one concept.
var columnSynonyms = map[string][]string{
	"date":        {"date", "data"},
	"amount":      {"amount", "valor", "value"},
	"description": {"description", "descri", "memo"},
	"merchant":    {"merchant", "estabelecimento", "name"},
	"currency":    {"currency", "moeda"},
	// The category column is recognized so the header cell is claimed, but
	// its value is discarded: a source-asserted category would bypass the
	// rule table and learned mappings.
	"category": {"category", "categoria"},
	"type":     {"type", "tipo"},
}

// concepts lists the lookup order. More specific concepts come first so a
// header like "transaction type" is not claimed by a looser synonym.
var concepts = []string{"date", "amount", "description", "merchant", "currency", "category", "type"}

// CanParse accepts any file the OFX parser did not claim: CSV is the
// fallback format. Files with OFX markers in the header are rejected so
// registry order cannot misroute a statement.
func (p *Parser) CanParse(filename string, header []byte) bool {
	if strings.ToLower(filepath.Ext(filename)) == ".csv" {
		return true
	}
	headerUpper := strings.ToUpper(string(header))
	return !strings.Contains(headerUpper, "OFXHEADER") && !strings.Contains(headerUpper, "<OFX")
}

// Parse reads the header row, maps columns, and converts each subsequent
// non-empty line into a RawRecord. Fields are tokenized with encoding/csv,
// so quoted fields containing literal commas survive intact.
func (p *Parser) Parse(ctx context.Context, r io.Reader) ([]parser.RawRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, parser.NewFormatError(p.Name(), "failed to read CSV content: %v", err)
	}
	if len(rows) == 0 {
		return nil, parser.NewFormatError(p.Name(), "file is empty")
	}

	columns, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	records := make([]parser.RawRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		// The category column, when mapped, is intentionally not read.
		records = append(records, parser.RawRecord{
			Date:          cell(row, columns["date"]),
			Amount:        cell(row, columns["amount"]),
			Description:   cell(row, columns["description"]),
			Counterpart:   cell(row, columns["merchant"]),
			CurrencyHint:  cell(row, columns["currency"]),
			DirectionHint: cell(row, columns["type"]),
			Line:          i + 2, // 1-based, header is line 1
		})
	}

	return records, nil
}

// mapHeader locates each column concept in the header row. Returns a
// FormatError listing the headers actually found when the date or amount
// column is missing.
func mapHeader(header []string) (map[string]int, error) {
	cleaned := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.Trim(h, `"`))
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff") // UTF-8 BOM
		}
		cleaned[i] = h
	}

	columns := make(map[string]int, len(concepts))
	claimed := make(map[int]bool, len(cleaned))
	for _, concept := range concepts {
		columns[concept] = -1
		for i, h := range cleaned {
			if claimed[i] {
				continue
			}
			if matchesConcept(h, columnSynonyms[concept]) {
				columns[concept] = i
				claimed[i] = true
				break
			}
		}
	}

	if columns["date"] < 0 || columns["amount"] < 0 {
		return nil, parser.NewFormatError("csv",
			"missing required date and/or amount column; found headers: %s",
			strings.Join(cleaned, ", "))
	}

	return columns, nil
}

func matchesConcept(header string, synonyms []string) bool {
	h := strings.ToLower(header)
	if h == "" {
		return false
	}
	for _, syn := range synonyms {
		if strings.Contains(h, syn) {
			return true
		}
	}
	return false
}

// cell returns the trimmed value at index, or empty when the column was not
// mapped or the row is short. Short rows are not an error here: a missing
// mandatory field surfaces as a row-normalization failure downstream.
func cell(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

func isEmptyRow(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

var _ parser.Parser = (*Parser)(nil)
