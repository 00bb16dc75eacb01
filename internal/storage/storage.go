// Package storage defines the persistence contract shared by the SQL backends.
package storage

import (
	"context"
	"errors"
	"time"

	"expense-ledger/internal/models"
	"expense-ledger/internal/money"
)

// ErrNotFound indicates a record does not exist or is not visible to the caller.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ConflictError reports which unique column rejected an insert.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return e.Field + " already exists"
}

// Is lets errors.Is(err, ErrAlreadyExists) match any conflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// SessionInfo holds session validation data.
type SessionInfo struct {
	User         *models.User
	LastActivity time.Time
	ExpiresAt    time.Time
}

// UserStore persists registered accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UserCount(ctx context.Context) (int, error)
}

// ExpenseStore persists expenses. Every method is scoped to the owning user.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, userID int64, category, description string, amount money.Amount) (*models.Expense, error)
	ListExpenses(ctx context.Context, userID int64) ([]models.Expense, error)
	UpdateExpense(ctx context.Context, userID, id int64, category, description string, amount money.Amount) error
	DeleteExpense(ctx context.Context, userID, id int64) error
}

// SessionStore persists login sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	ValidateSession(ctx context.Context, token string) (*SessionInfo, error)
	RenewSession(ctx context.Context, token string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, token string) error
	CleanExpiredSessions(ctx context.Context) (int64, error)
}

// Store is everything the application needs from a backend.
type Store interface {
	UserStore
	ExpenseStore
	SessionStore
	Close() error
}
