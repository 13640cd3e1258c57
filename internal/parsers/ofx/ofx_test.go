package ofx

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/solufin/extrato/internal/parser"
)

const sampleFragment = `<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250307120000[-3:BRT]
<TRNAMT>-45.90
<FITID>2025030701
<NAME>IFOOD
<MEMO>IFOOD *PEDIDO 1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250308
<TRNAMT>1200.00
<FITID>2025030801
<NAME>EMPRESA LTDA
</STMTTRN>`

func TestCanParse(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name     string
		filename string
		header   string
		want     bool
	}{
		{"ofx extension", "extrato.ofx", "", true},
		{"qfx extension", "download.QFX", "", true},
		{"ofx header marker", "statement.txt", "OFXHEADER:100", true},
		{"ofx tag marker", "statement.txt", "<OFX>", true},
		{"bare stmttrn fragment", "statement.txt", "<STMTTRN>", true},
		{"csv content", "extrato.csv", "date,amount", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.CanParse(tt.filename, []byte(tt.header)); got != tt.want {
				t.Errorf("CanParse(%q, %q) = %v, want %v", tt.filename, tt.header, got, tt.want)
			}
		})
	}
}

func TestParse_Fragment(t *testing.T) {
	records, err := NewParser().Parse(context.Background(), strings.NewReader(sampleFragment))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Parse() returned %d records, want 2", len(records))
	}

	first := records[0]
	if first.Date != "20250307" {
		t.Errorf("Date = %q, want timezone suffix truncated", first.Date)
	}
	if first.Amount != "-45.90" {
		t.Errorf("Amount = %q", first.Amount)
	}
	if first.Description != "IFOOD *PEDIDO 1234" {
		t.Errorf("Description = %q, want MEMO preferred over NAME", first.Description)
	}
	if first.Counterpart != "IFOOD" {
		t.Errorf("Counterpart = %q", first.Counterpart)
	}
	if first.DirectionHint != "debit" {
		t.Errorf("DirectionHint = %q", first.DirectionHint)
	}
	if first.NaturalID != "2025030701" {
		t.Errorf("NaturalID = %q", first.NaturalID)
	}

	second := records[1]
	if second.Description != "EMPRESA LTDA" {
		t.Errorf("Description = %q, want NAME fallback when MEMO missing", second.Description)
	}
	if second.DirectionHint != "credit" {
		t.Errorf("DirectionHint = %q", second.DirectionHint)
	}
}

func TestParse_UnterminatedFinalBlock(t *testing.T) {
	input := `<STMTTRN>
<DTPOSTED>20250307
<TRNAMT>-10.00
<FITID>A1
<STMTTRN>
<DTPOSTED>20250308
<TRNAMT>-20.00
<FITID>A2`

	records, err := NewParser().Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2 (closing tags are optional)", len(records))
	}
	if records[1].NaturalID != "A2" {
		t.Errorf("second NaturalID = %q", records[1].NaturalID)
	}
}

func TestParse_SkipsBlockWithoutDateAndAmount(t *testing.T) {
	input := `<STMTTRN>
<TRNTYPE>DEBIT
<MEMO>no usable fields
</STMTTRN>
<STMTTRN>
<DTPOSTED>20250307
<TRNAMT>-10.00
</STMTTRN>`

	records, err := NewParser().Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 (empty block skipped silently)", len(records))
	}
}

func TestParse_KeepsBlockWithOnlyDate(t *testing.T) {
	// One of date/amount present: the row is yielded and left for the
	// importer to count as a row failure.
	input := `<STMTTRN>
<DTPOSTED>20250307
<MEMO>amount missing
</STMTTRN>`

	records, err := NewParser().Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].Amount != "" {
		t.Errorf("Amount = %q, want empty", records[0].Amount)
	}
}

func TestParse_LowercaseTags(t *testing.T) {
	input := "<stmttrn>\n<dtposted>20250307\n<trnamt>-10.00\n</stmttrn>"

	records, err := NewParser().Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 (tag matching is case-insensitive)", len(records))
	}
}

func TestParse_EmptyFile(t *testing.T) {
	_, err := NewParser().Parse(context.Background(), strings.NewReader("  \n "))
	var formatErr *parser.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("Parse() error = %v, want *parser.FormatError", err)
	}
}

func TestParse_NoBlocks(t *testing.T) {
	_, err := NewParser().Parse(context.Background(), strings.NewReader("OFXHEADER:100\nDATA:OFXSGML\n"))
	var formatErr *parser.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("Parse() error = %v, want *parser.FormatError", err)
	}
	if !strings.Contains(formatErr.Error(), "STMTTRN") {
		t.Errorf("error should mention the expected marker, got: %v", formatErr)
	}
}

func TestTruncateOFXDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"20250307120000[-3:BRT]", "20250307"},
		{"20250307120000", "20250307"},
		{"20250307", "20250307"},
		{"2025-03-07", "2025-03-07"}, // already separated, left alone
		{"", ""},
	}
	for _, tt := range tests {
		if got := truncateOFXDate(tt.raw); got != tt.want {
			t.Errorf("truncateOFXDate(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
