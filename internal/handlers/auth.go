package handlers

import (
	"net/http"

	"expense-ledger/internal/auth"
	"expense-ledger/internal/logging"
)

const msgInvalidCredentials = "Invalid username or password."

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an account. It does not sign the user in.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondServiceError(w, r, err, "")
		return
	}
	if _, err := h.auth.Register(r.Context(), in); err != nil {
		respondServiceError(w, r, err, "Failed to register")
		return
	}
	respondMessage(w, r, http.StatusCreated, "Registration successful!")
}

// Login checks credentials and sets the session cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err, "")
		return
	}
	session, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondServiceError(w, r, err, "Failed to login")
		return
	}
	h.setSessionCookie(w, session.Token)
	respondMessage(w, r, http.StatusOK, "Login successful")
}

// Logout destroys the session, if any, and returns to the login page.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.auth.Logout(r.Context(), cookie.Value); err != nil {
			logging.FromContext(r.Context()).WithError(err).Error("failed to delete session")
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}
