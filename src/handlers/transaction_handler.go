package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/cgtfolio/backend/src/logger"
	"github.com/username/cgtfolio/backend/src/models"
	"github.com/username/cgtfolio/backend/src/store"
	"github.com/username/cgtfolio/backend/src/utils"
)

// TransactionHandler serves the read-only listing endpoints: securities,
// transactions, parcels and committed matches.
type TransactionHandler struct {
	store *store.SQLStore
}

func NewTransactionHandler(st *store.SQLStore) *TransactionHandler {
	return &TransactionHandler{store: st}
}

func (h *TransactionHandler) HandleGetSecurities(w http.ResponseWriter, r *http.Request) {
	securities, err := h.store.ListSecurities()
	if err != nil {
		logger.L.Error("failed to list securities", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if securities == nil {
		securities = []*models.Security{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(securities)
}

// HandleGetTransactions lists transactions, filterable by ticker,
// type (BUY or SELL) and unmatched=true for open sells.
func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter store.TransactionFilter

	if ticker := q.Get("ticker"); ticker != "" {
		sec, err := h.store.GetSecurityByTicker(ticker)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.SendJSONError(w, "unknown ticker", http.StatusNotFound)
				return
			}
			logger.L.Error("failed to resolve ticker", "ticker", ticker, "error", err)
			utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		filter.SecurityID = sec.ID
	}
	if t := strings.ToUpper(q.Get("type")); t != "" {
		if t != models.TransactionTypeBuy && t != models.TransactionTypeSell {
			utils.SendJSONError(w, "type must be BUY or SELL", http.StatusBadRequest)
			return
		}
		filter.Type = t
	}
	switch q.Get("unmatched") {
	case "true", "1":
		filter.UnmatchedOnly = true
	}

	transactions, err := h.store.ListTransactions(filter)
	if err != nil {
		logger.L.Error("failed to list transactions", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if transactions == nil {
		transactions = []*models.Transaction{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// HandleGetParcels lists the parcels of one security, open and exhausted,
// oldest first. The ticker query parameter is required.
func (h *TransactionHandler) HandleGetParcels(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		utils.SendJSONError(w, "ticker query parameter is required", http.StatusBadRequest)
		return
	}
	sec, err := h.store.GetSecurityByTicker(ticker)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "unknown ticker", http.StatusNotFound)
			return
		}
		logger.L.Error("failed to resolve ticker", "ticker", ticker, "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	parcels, err := h.store.ParcelsForSecurity(sec.ID)
	if err != nil {
		logger.L.Error("failed to list parcels", "ticker", ticker, "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if parcels == nil {
		parcels = []*models.Parcel{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(parcels)
}

// HandleGetMatches lists the committed matches of one sell transaction.
func (h *TransactionHandler) HandleGetMatches(w http.ResponseWriter, r *http.Request) {
	sellID, err := strconv.ParseInt(r.URL.Query().Get("sell_transaction_id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "sell_transaction_id must be an integer", http.StatusBadRequest)
		return
	}

	matches, err := h.store.MatchesForSell(sellID)
	if err != nil {
		logger.L.Error("failed to list matches", "sellID", sellID, "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if matches == nil {
		matches = []*models.ParcelMatch{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(matches)
}
