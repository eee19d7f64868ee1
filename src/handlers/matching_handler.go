package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/cgtfolio/backend/src/engine"
	"github.com/username/cgtfolio/backend/src/logger"
	"github.com/username/cgtfolio/backend/src/services"
	"github.com/username/cgtfolio/backend/src/utils"
)

type MatchingHandler struct {
	matchingService services.MatchingService
}

func NewMatchingHandler(matchingService services.MatchingService) *MatchingHandler {
	return &MatchingHandler{matchingService: matchingService}
}

func (h *MatchingHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SellTransactionID int64                     `json:"sell_transaction_id"`
		Strategy          string                    `json:"strategy"`
		Allocations       []engine.ManualAllocation `json:"allocations,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	strategy, err := engine.ParseStrategy(payload.Strategy)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	preview, err := h.matchingService.Preview(payload.SellTransactionID, strategy, payload.Allocations)
	if err != nil {
		h.sendMatchingError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(preview)
}

func (h *MatchingHandler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PreviewID string `json:"preview_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.PreviewID == "" {
		utils.SendJSONError(w, "preview_id is required", http.StatusBadRequest)
		return
	}

	result, err := h.matchingService.Commit(payload.PreviewID)
	if err != nil {
		h.sendMatchingError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *MatchingHandler) HandleUnmatch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SellTransactionID int64 `json:"sell_transaction_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.matchingService.UnmatchSell(payload.SellTransactionID); err != nil {
		h.sendMatchingError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Matches reversed"})
}

func (h *MatchingHandler) sendMatchingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrPreviewNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrNotSellTransaction),
		errors.Is(err, services.ErrNoMatchesToReverse),
		errors.Is(err, engine.ErrInvalidStrategy):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrAlreadyFullyMatched),
		errors.Is(err, engine.ErrStaleAllocation):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrInsufficientQuantity),
		errors.Is(err, engine.ErrQuantityMismatch),
		errors.Is(err, engine.ErrOverAllocation):
		utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		logger.L.Error("matching operation failed", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}
