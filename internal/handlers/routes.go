package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes registers every page and API route on r. Static assets are left to
// the caller.
func (h *Handlers) Routes(r *mux.Router) {
	r.HandleFunc("/", h.Root).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/register", h.RegisterPage).Methods(http.MethodGet)
	r.HandleFunc("/login", h.LoginPage).Methods(http.MethodGet)
	r.HandleFunc("/logout", h.Logout).Methods(http.MethodGet)
	r.Handle("/dashboard", h.AuthMiddleware(http.HandlerFunc(h.Dashboard))).Methods(http.MethodGet)

	r.HandleFunc("/api/registration", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/user/login", h.Login).Methods(http.MethodPost)

	api := r.PathPrefix("/api/expenses").Subrouter()
	api.Use(h.APIAuthMiddleware)
	api.HandleFunc("", h.ListExpenses).Methods(http.MethodGet)
	api.HandleFunc("", h.CreateExpense).Methods(http.MethodPost)
	api.HandleFunc("/summary", h.Statistics).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.UpdateExpense).Methods(http.MethodPut)
	api.HandleFunc("/{id}", h.DeleteExpense).Methods(http.MethodDelete)
}
