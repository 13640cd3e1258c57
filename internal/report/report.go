// Package report serializes the outcome of a CLI import run to JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/solufin/extrato/internal/domain"
)

// FileResult is the outcome of importing one statement file.
type FileResult struct {
	File    string                `json:"file"`
	Summary *domain.ImportSummary `json:"summary,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// Report aggregates one CLI run.
type Report struct {
	Owner      string       `json:"owner"`
	RanAt      time.Time    `json:"ran_at"`
	DryRun     bool         `json:"dry_run,omitempty"`
	Files      []FileResult `json:"files"`
	Inserted   int          `json:"inserted"`
	Duplicates int          `json:"duplicates"`
	FailedRows int          `json:"failed_rows"`
}

// New creates an empty report for one owner.
func New(owner string, dryRun bool) *Report {
	return &Report{Owner: owner, RanAt: time.Now(), DryRun: dryRun, Files: []FileResult{}}
}

// AddResult records one file's summary and rolls it into the totals.
func (r *Report) AddResult(file string, summary *domain.ImportSummary) {
	r.Files = append(r.Files, FileResult{File: file, Summary: summary})
	r.Inserted += summary.Inserted
	r.Duplicates += summary.Duplicates
	r.FailedRows += summary.FailedRows
}

// AddFailure records a file that could not be imported at all.
func (r *Report) AddFailure(file string, err error) {
	r.Files = append(r.Files, FileResult{File: file, Error: err.Error()})
}

// Write serializes the report as indented JSON.
func (r *Report) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report as JSON: %w", err)
	}
	return nil
}

// WriteToFile writes the report to the given path, or stdout when the
// path is empty.
func (r *Report) WriteToFile(path string) (err error) {
	if path == "" {
		return r.Write(os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", path, closeErr)
		}
	}()

	if err = r.Write(f); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}
