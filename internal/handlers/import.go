package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/solufin/extrato/internal/importer"
	"github.com/solufin/extrato/internal/middleware"
	"github.com/solufin/extrato/internal/parser"
	"github.com/solufin/extrato/internal/registry"
	"github.com/solufin/extrato/internal/store"
)

// ImportRequest is the POST /api/import payload. FileContent is the
// base64-encoded statement file.
type ImportRequest struct {
	Filename     string `json:"filename"`
	FileContent  string `json:"fileContent"`
	DeclaredType string `json:"declaredType,omitempty"` // "csv" or "ofx"; empty means sniff.
}

// ImportResponse wraps a successful import.
type ImportResponse struct {
	Success bool   `json:"success"`
	Summary any    `json:"summary"`
	Message string `json:"message"`
}

// ImportHandler handles statement uploads.
type ImportHandler struct {
	importer  *importer.Importer
	maxUpload int64
	log       zerolog.Logger
}

// NewImportHandler creates an import handler. maxUpload bounds the raw
// request body size in bytes.
func NewImportHandler(imp *importer.Importer, maxUpload int64, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{importer: imp, maxUpload: maxUpload, log: log}
}

// Import handles POST /api/import.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req ImportRequest
	body := http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FileContent == "" {
		writeError(w, http.StatusBadRequest, "fileContent is required")
		return
	}

	content, err := base64.StdEncoding.DecodeString(req.FileContent)
	if err != nil {
		writeError(w, http.StatusBadRequest, "fileContent is not valid base64")
		return
	}

	summary, err := h.importer.Run(r.Context(), ownerID, content, req.Filename, req.DeclaredType)
	if err != nil {
		h.log.Warn().Err(err).Str("owner", ownerID).Str("file", req.Filename).Msg("import failed")
		writeImportError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ImportResponse{
		Success: true,
		Summary: summary,
		Message: fmt.Sprintf("Imported %d of %d rows (%d duplicates, %d failed)",
			summary.Inserted, summary.TotalRows, summary.Duplicates, summary.FailedRows),
	})
}

// writeImportError maps importer failures to status codes: structural
// problems with the uploaded file are the client's fault, an unreachable
// store is not.
func writeImportError(w http.ResponseWriter, err error) {
	var formatErr *parser.FormatError
	var capErr *importer.CapacityError
	switch {
	case errors.As(err, &formatErr):
		writeError(w, http.StatusBadRequest, formatErr.Error())
	case errors.Is(err, registry.ErrNoParser):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &capErr):
		writeError(w, http.StatusRequestEntityTooLarge, capErr.Error())
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "Import failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
