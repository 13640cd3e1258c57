package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/solufin/extrato/internal/domain"
	"github.com/solufin/extrato/internal/middleware"
	"github.com/solufin/extrato/internal/normalize"
	"github.com/solufin/extrato/internal/rules"
	"github.com/solufin/extrato/internal/store"
)

// CategoryRequest is the POST /api/transactions/{id}/category payload.
type CategoryRequest struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
}

// CategoryHandler applies manual recategorizations and records the
// learned merchant mapping so future imports follow the correction.
type CategoryHandler struct {
	store       store.Store
	categorizer *rules.Categorizer
	log         zerolog.Logger
}

// NewCategoryHandler creates a category handler.
func NewCategoryHandler(st store.Store, cat *rules.Categorizer, log zerolog.Logger) *CategoryHandler {
	return &CategoryHandler{store: st, categorizer: cat, log: log}
}

// SetCategory handles POST /api/transactions/{id}/category.
func (h *CategoryHandler) SetCategory(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	txnID := r.PathValue("id")

	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !domain.ValidateCategory(req.Category, req.Subcategory) {
		writeError(w, http.StatusBadRequest, "Unknown category/subcategory pair")
		return
	}

	txn, err := h.store.GetTransaction(r.Context(), ownerID, txnID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("txn", txnID).Msg("failed to load transaction")
		writeError(w, http.StatusInternalServerError, "Failed to load transaction")
		return
	}

	if err := h.store.UpdateTransactionCategory(r.Context(), ownerID, txnID, req.Category, req.Subcategory); err != nil {
		h.log.Error().Err(err).Str("txn", txnID).Msg("failed to update transaction")
		writeError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}

	// Learn the correction. Rows without a merchant fall back to the
	// description so repeated statements still benefit.
	merchant := txn.Merchant
	if merchant == "" {
		merchant = txn.Description
	}
	if key := normalize.MerchantKey(merchant); key != "" {
		mapping := &store.MerchantMapping{
			OwnerID:     ownerID,
			MerchantKey: key,
			Category:    req.Category,
			Subcategory: req.Subcategory,
			UpdatedAt:   time.Now(),
		}
		if err := h.store.UpsertMerchantMapping(r.Context(), mapping); err != nil {
			h.log.Warn().Err(err).Str("merchant", key).Msg("failed to record merchant mapping")
		} else {
			h.categorizer.InvalidateMerchant(ownerID, key)
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
