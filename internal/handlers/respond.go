package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"expense-ledger/internal/auth"
	"expense-ledger/internal/expense"
	"expense-ledger/internal/logging"
	"expense-ledger/internal/money"
	"expense-ledger/internal/storage"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var errBadJSON = errors.New("invalid JSON body")

type messageResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(r.Context()).WithError(err).Warn("respondJSON: encode payload failed")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, r, status, map[string]string{"error": message})
}

func respondMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, r, status, messageResponse{Message: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadJSON
	}
	return nil
}

// respondServiceError maps service errors to status codes. Anything it does
// not recognise is logged and reported as fallback with a 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, r, http.StatusBadRequest, verr)
	case errors.Is(err, expense.ErrInvalidExpense), errors.Is(err, money.ErrInvalidAmount), errors.Is(err, errBadJSON):
		respondError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, r, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "Expense not found")
	default:
		logging.FromContext(r.Context()).WithError(err).Error(fallback)
		respondError(w, r, http.StatusInternalServerError, fallback)
	}
}
