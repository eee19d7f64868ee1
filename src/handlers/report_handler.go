package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/username/cgtfolio/backend/src/logger"
	"github.com/username/cgtfolio/backend/src/services"
	"github.com/username/cgtfolio/backend/src/utils"
)

type ReportHandler struct {
	reportService services.ReportService
}

func NewReportHandler(reportService services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// HandleFYSummary returns the capital-gains summary for one financial year.
// The year query parameter uses the ending-calendar-year convention, so
// year=2025 is the FY ending in 2025.
func (h *ReportHandler) HandleFYSummary(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 1900 || year > 3000 {
		utils.SendJSONError(w, "year must be a four digit year", http.StatusBadRequest)
		return
	}

	summary, err := h.reportService.FYSummary(year)
	if err != nil {
		logger.L.Error("failed to build FY summary", "year", year, "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	etag, err := utils.GenerateETag(summary)
	if err == nil {
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// HandleAvailableFYs lists the financial years that have committed matches.
func (h *ReportHandler) HandleAvailableFYs(w http.ResponseWriter, r *http.Request) {
	years, err := h.reportService.AvailableFYs()
	if err != nil {
		logger.L.Error("failed to list financial years", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]int{"years": years})
}
