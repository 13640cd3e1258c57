// Package ofx provides OFX/QFX statement parsing.
//
// Well-formed OFX documents go through ofxgo, which understands both the
// SGML and XML dialects and yields the bank's own FITID per transaction.
// Many real-world exports are headerless fragments that ofxgo refuses, so
// parsing falls back to a lenient scanner over STMTTRN blocks that extracts
// just the recognized tags (DTPOSTED, TRNAMT, MEMO, NAME, FITID).
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/solufin/extrato/internal/parser"
)

// Parser implements OFX/QFX parsing with a stateless design. The shared
// instance is safe for concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared OFX parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "ofx"
}

// CanParse checks extension and header markers. Headerless fragments are
// recognized by the STMTTRN block marker alone.
func (p *Parser) CanParse(filename string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".ofx" || ext == ".qfx" {
		return true
	}

	headerUpper := strings.ToUpper(string(header))
	return strings.Contains(headerUpper, "OFXHEADER") ||
		strings.Contains(headerUpper, "<OFX>") ||
		strings.Contains(headerUpper, "<STMTTRN>")
}

// Parse extracts raw records from an OFX/QFX file in encounter order.
func (p *Parser) Parse(ctx context.Context, r io.Reader) ([]parser.RawRecord, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX content: %w", err)
	}

	// ofxgo.ParseResponse does not support cancellation; check between the
	// read and the parse.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if len(bytes.TrimSpace(content)) == 0 {
		return nil, parser.NewFormatError(p.Name(), "file is empty")
	}

	if records, ok := p.parseStrict(content); ok {
		return records, nil
	}

	return p.parseBlocks(content)
}

// parseStrict attempts a full ofxgo parse. Returns ok=false when the
// document is not a complete OFX response, handing over to the block
// scanner.
func (p *Parser) parseStrict(content []byte) ([]parser.RawRecord, bool) {
	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, false
	}

	var lists []*ofxgo.TransactionList
	for _, msg := range response.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			lists = append(lists, stmt.BankTranList)
		}
	}
	for _, msg := range response.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			lists = append(lists, stmt.BankTranList)
		}
	}
	if len(lists) == 0 {
		return nil, false
	}

	var records []parser.RawRecord
	line := 0
	for _, list := range lists {
		for _, txn := range list.Transactions {
			line++
			amount, _ := txn.TrnAmt.Float64()

			description := strings.TrimSpace(txn.Memo.String())
			name := strings.TrimSpace(txn.Name.String())
			if description == "" {
				description = name
			}

			currency := ""
			if txn.Currency != nil {
				currency = strings.TrimSpace(txn.Currency.CurSym.String())
			}

			records = append(records, parser.RawRecord{
				Date:          txn.DtPosted.Time.Format("2006-01-02"),
				Amount:        fmt.Sprintf("%.2f", amount),
				Description:   description,
				Counterpart:   name,
				CurrencyHint:  currency,
				DirectionHint: directionFromSign(amount),
				NaturalID:     strings.TrimSpace(txn.FiTID.String()),
				Line:          line,
			})
		}
	}
	return records, true
}

// Block and tag markers for the lenient scanner. Tag values in SGML OFX run
// to the next '<' or end of line; closing tags are optional.
const (
	blockStart = "<STMTTRN>"
	blockEnd   = "</STMTTRN>"
)

// parseBlocks scans STMTTRN blocks and extracts the recognized tags. A
// block carrying neither a date nor an amount is silently skipped; a block
// with only one of them is still yielded and fails later as a row-level
// normalization error.
func (p *Parser) parseBlocks(content []byte) ([]parser.RawRecord, error) {
	text := string(content)
	upper := strings.ToUpper(text)

	var records []parser.RawRecord
	pos := 0
	blockNo := 0
	for {
		start := strings.Index(upper[pos:], blockStart)
		if start < 0 {
			break
		}
		start += pos + len(blockStart)

		end := strings.Index(upper[start:], blockEnd)
		var block string
		if end < 0 {
			// Unterminated final block: read to the next block start or EOF.
			next := strings.Index(upper[start:], blockStart)
			if next < 0 {
				block = text[start:]
				pos = len(text)
			} else {
				block = text[start : start+next]
				pos = start + next
			}
		} else {
			block = text[start : start+end]
			pos = start + end + len(blockEnd)
		}
		blockNo++

		date := extractTag(block, "DTPOSTED")
		amount := extractTag(block, "TRNAMT")
		if date == "" && amount == "" {
			continue
		}

		memo := extractTag(block, "MEMO")
		name := extractTag(block, "NAME")
		description := memo
		if description == "" {
			description = name
		}

		records = append(records, parser.RawRecord{
			Date:          truncateOFXDate(date),
			Amount:        amount,
			Description:   description,
			Counterpart:   name,
			DirectionHint: directionFromSignString(amount),
			NaturalID:     extractTag(block, "FITID"),
			Line:          blockNo,
		})
	}

	if blockNo == 0 {
		return nil, parser.NewFormatError(p.Name(), "no transaction blocks found (expected %s markers)", blockStart)
	}

	return records, nil
}

// extractTag returns the value following <TAG> up to the next '<' or end of
// line. Tag lookup is case-insensitive; the value keeps its original case.
func extractTag(block, tag string) string {
	marker := "<" + tag + ">"
	idx := strings.Index(strings.ToUpper(block), marker)
	if idx < 0 {
		return ""
	}
	rest := block[idx+len(marker):]
	if cut := strings.IndexAny(rest, "<\r\n"); cut >= 0 {
		rest = rest[:cut]
	}
	return strings.TrimSpace(rest)
}

// truncateOFXDate reduces DTPOSTED values like 20240110120000[-5:EST] to
// the YYYYMMDD prefix the normalizer understands.
func truncateOFXDate(raw string) string {
	digits := 0
	for digits < len(raw) && raw[digits] >= '0' && raw[digits] <= '9' {
		digits++
	}
	if digits >= 8 {
		return raw[:8]
	}
	return raw
}

// OFX amounts carry sign directly: negative is money out.
func directionFromSign(amount float64) string {
	if amount < 0 {
		return "debit"
	}
	return "credit"
}

func directionFromSignString(amount string) string {
	if strings.HasPrefix(strings.TrimSpace(amount), "-") {
		return "debit"
	}
	if amount == "" {
		return ""
	}
	return "credit"
}

var _ parser.Parser = (*Parser)(nil)
