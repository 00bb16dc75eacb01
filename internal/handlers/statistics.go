package handlers

import (
	"net/http"
	"strconv"
	"time"
)

// Statistics returns the caller's spending per category. With ?year=&month=
// it covers that calendar month (UTC) and a bare ?year= covers the whole
// year. A month without a year means that month of the current year. With
// neither it covers everything.
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	yearStr := r.URL.Query().Get("year")
	monthStr := r.URL.Query().Get("month")

	year := 0
	var month time.Month
	if yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil || y < 1 || y > 9999 {
			respondError(w, r, http.StatusBadRequest, "year must be between 1 and 9999")
			return
		}
		year = y
	}
	if monthStr != "" {
		m, err := strconv.Atoi(monthStr)
		if err != nil || m < 1 || m > 12 {
			respondError(w, r, http.StatusBadRequest, "month must be between 1 and 12")
			return
		}
		if year == 0 {
			year = time.Now().UTC().Year()
		}
		month = time.Month(m)
	}

	summary, err := h.expenses.Summary(r.Context(), UserFromContext(r).ID, year, month)
	if err != nil {
		respondServiceError(w, r, err, "Failed to summarize expenses")
		return
	}
	respondJSON(w, r, http.StatusOK, summary)
}
