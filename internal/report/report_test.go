package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solufin/extrato/internal/domain"
)

func sampleSummary(inserted, duplicates, failed int) *domain.ImportSummary {
	s := domain.NewImportSummary()
	s.TotalRows = inserted + duplicates + failed
	s.Inserted = inserted
	s.Duplicates = duplicates
	s.FailedRows = failed
	return s
}

func TestAddResult_RollsTotals(t *testing.T) {
	r := New("user-1", false)
	r.AddResult("a.csv", sampleSummary(3, 1, 0))
	r.AddResult("b.ofx", sampleSummary(2, 0, 1))
	r.AddFailure("c.csv", errors.New("unparseable header"))

	assert.Equal(t, 5, r.Inserted)
	assert.Equal(t, 1, r.Duplicates)
	assert.Equal(t, 1, r.FailedRows)
	require.Len(t, r.Files, 3)
	assert.Equal(t, "unparseable header", r.Files[2].Error)
	assert.Nil(t, r.Files[2].Summary)
}

func TestWrite_JSON(t *testing.T) {
	r := New("user-1", true)
	r.AddResult("a.csv", sampleSummary(3, 0, 0))

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "user-1", decoded.Owner)
	assert.True(t, decoded.DryRun)
	assert.Equal(t, 3, decoded.Inserted)
	require.Len(t, decoded.Files, 1)
	assert.Equal(t, "a.csv", decoded.Files[0].File)
}

func TestWriteToFile(t *testing.T) {
	r := New("user-1", false)
	r.AddResult("a.csv", sampleSummary(1, 0, 0))

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, r.WriteToFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 1, decoded.Inserted)
}

func TestWriteToFile_BadPath(t *testing.T) {
	r := New("user-1", false)
	err := r.WriteToFile(filepath.Join(t.TempDir(), "missing-dir", "report.json"))
	assert.Error(t, err)
}
