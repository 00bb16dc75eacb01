package handlers

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"expense-ledger/internal/auth"
	"expense-ledger/internal/expense"
	"expense-ledger/internal/logging"
	"expense-ledger/internal/models"

	"github.com/sirupsen/logrus"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	auth         *auth.Service
	expenses     *expense.Service
	pages        fs.FS
	log          logrus.FieldLogger
	secureCookie bool
	startedAt    time.Time
}

// NewHandlers creates a new Handlers instance. pages must contain
// register.html, login.html and dashboard.html at its root.
func NewHandlers(authSvc *auth.Service, expenses *expense.Service, pages fs.FS, log logrus.FieldLogger, secureCookie bool) *Handlers {
	return &Handlers{
		auth:         authSvc,
		expenses:     expenses,
		pages:        pages,
		log:          log.WithField("component", "http"),
		secureCookie: secureCookie,
		startedAt:    time.Now(),
	}
}

// UserFromContext retrieves the authenticated user from request context.
func UserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// authenticate resolves the session cookie. Dead cookies are cleared and a
// renewed session gets a fresh cookie lifetime.
func (h *Handlers) authenticate(w http.ResponseWriter, r *http.Request) (*models.User, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, auth.ErrSessionRequired
	}

	id, err := h.auth.Authenticate(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, auth.ErrSessionRequired) {
			h.clearSessionCookie(w)
		}
		return nil, err
	}
	if id.Renewed {
		h.setSessionCookie(w, cookie.Value)
	}
	return id.User, nil
}

// AuthMiddleware guards browser pages: without a live session the request is
// redirected to /login.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.authenticate(w, r)
		if err != nil {
			if !errors.Is(err, auth.ErrSessionRequired) {
				logging.FromContext(r.Context()).WithError(err).Error("session lookup failed")
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, user)))
	})
}

// APIAuthMiddleware guards JSON endpoints: without a live session the request
// is answered with 401 and a JSON error body.
func (h *Handlers) APIAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.authenticate(w, r)
		if err != nil {
			if errors.Is(err, auth.ErrSessionRequired) {
				respondError(w, r, http.StatusUnauthorized, auth.ErrSessionRequired.Error())
				return
			}
			logging.FromContext(r.Context()).WithError(err).Error("session lookup failed")
			respondError(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, user)))
	})
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.auth.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Root sends visitors to their dashboard.
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// RegisterPage serves the registration form.
func (h *Handlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, r, "register.html")
}

// LoginPage serves the login form, or the dashboard when already signed in.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticate(w, r); err == nil {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.servePage(w, r, "login.html")
}

// Dashboard serves the expense dashboard. It sits behind AuthMiddleware.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, r, "dashboard.html")
}

func (h *Handlers) servePage(w http.ResponseWriter, r *http.Request, name string) {
	body, err := fs.ReadFile(h.pages, name)
	if err != nil {
		logging.FromContext(r.Context()).WithError(err).WithField("page", name).Error("page not found")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(body); err != nil {
		logging.FromContext(r.Context()).WithError(err).Debug("write page")
	}
}
