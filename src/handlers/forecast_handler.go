package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/cgtfolio/backend/src/engine"
	"github.com/username/cgtfolio/backend/src/logger"
	"github.com/username/cgtfolio/backend/src/services"
	"github.com/username/cgtfolio/backend/src/utils"
)

type ForecastHandler struct {
	forecastService services.ForecastService
}

func NewForecastHandler(forecastService services.ForecastService) *ForecastHandler {
	return &ForecastHandler{forecastService: forecastService}
}

// HandleForecast simulates a hypothetical sell across every strategy.
// Query params: ticker, quantity, price, optional date (defaults to today).
func (h *ForecastHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ticker := q.Get("ticker")
	if ticker == "" {
		utils.SendJSONError(w, "ticker query parameter is required", http.StatusBadRequest)
		return
	}

	quantity, err := strconv.ParseInt(q.Get("quantity"), 10, 64)
	if err != nil || quantity <= 0 {
		utils.SendJSONError(w, "quantity must be a positive integer", http.StatusBadRequest)
		return
	}

	price, err := decimal.NewFromString(q.Get("price"))
	if err != nil || !price.IsPositive() {
		utils.SendJSONError(w, "price must be a positive number", http.StatusBadRequest)
		return
	}

	sellDate := time.Now()
	if raw := q.Get("date"); raw != "" {
		sellDate, err = time.Parse("2006-01-02", raw)
		if err != nil {
			utils.SendJSONError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	result, err := h.forecastService.Forecast(ticker, quantity, price, sellDate)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSecurityNotFound):
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, engine.ErrInsufficientQuantity):
			utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			logger.L.Error("forecast failed", "ticker", ticker, "error", err)
			utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
