package handlers

import (
	"net/http"
	"strconv"

	"expense-ledger/internal/expense"
	"expense-ledger/internal/storage"

	"github.com/gorilla/mux"
)

// ListExpenses returns the caller's expenses and their total.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := h.expenses.List(r.Context(), UserFromContext(r).ID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to fetch expenses")
		return
	}
	respondJSON(w, r, http.StatusOK, list)
}

// CreateExpense records an expense for the caller.
func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var in expense.Input
	if err := decodeJSON(w, r, &in); err != nil {
		respondServiceError(w, r, err, "")
		return
	}
	e, err := h.expenses.Create(r.Context(), UserFromContext(r).ID, in)
	if err != nil {
		respondServiceError(w, r, err, "Failed to add expense")
		return
	}
	respondJSON(w, r, http.StatusCreated, messageResponse{Message: "Expense added successfully", ID: e.ID})
}

// UpdateExpense overwrites one of the caller's expenses.
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := expenseID(w, r)
	if !ok {
		return
	}
	var in expense.Input
	if err := decodeJSON(w, r, &in); err != nil {
		respondServiceError(w, r, err, "")
		return
	}
	if err := h.expenses.Update(r.Context(), UserFromContext(r).ID, id, in); err != nil {
		respondServiceError(w, r, err, "Failed to update expense")
		return
	}
	respondMessage(w, r, http.StatusOK, "Expense updated successfully")
}

// DeleteExpense removes one of the caller's expenses.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := expenseID(w, r)
	if !ok {
		return
	}
	if err := h.expenses.Delete(r.Context(), UserFromContext(r).ID, id); err != nil {
		respondServiceError(w, r, err, "Failed to delete expense")
		return
	}
	respondMessage(w, r, http.StatusOK, "Expense deleted successfully")
}

// expenseID reads the {id} route variable. Ids that cannot exist are
// reported as not found.
func expenseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondServiceError(w, r, storage.ErrNotFound, "")
		return 0, false
	}
	return id, true
}
