package models

import (
	"time"

	"expense-ledger/internal/money"
)

// Expense represents a single spending record owned by one user.
type Expense struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"user_id"`
	Category    string       `json:"category"`
	Description string       `json:"description"`
	Amount      money.Amount `json:"amount"`
	DateCreated time.Time    `json:"date_created"`
}

// ExpenseList is a user's expenses together with their total.
type ExpenseList struct {
	Expenses    []Expense    `json:"expenses"`
	TotalAmount money.Amount `json:"totalAmount"`
}

// User represents a registered account.
type User struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents a server-side login session keyed by its cookie token.
type Session struct {
	Token        string    `json:"-"`
	UserID       int64     `json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
}

// CategoryTotal is the spending of one category within a summary.
type CategoryTotal struct {
	Category   string       `json:"category"`
	Total      money.Amount `json:"total"`
	Count      int          `json:"count"`
	Percentage float64      `json:"percentage"`
}

// ExpenseSummary groups a user's spending by category, largest first.
type ExpenseSummary struct {
	Year        int             `json:"year,omitempty"`
	Month       int             `json:"month,omitempty"`
	Categories  []CategoryTotal `json:"categories"`
	TotalAmount money.Amount    `json:"totalAmount"`
}
