// Package expense implements per-user expense bookkeeping on top of storage.
package expense

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"expense-ledger/internal/models"
	"expense-ledger/internal/money"
	"expense-ledger/internal/storage"

	"github.com/sirupsen/logrus"
)

// ErrInvalidExpense wraps every input rejection.
var ErrInvalidExpense = errors.New("invalid expense")

// maxAmount is the largest amount a single expense may carry.
const maxAmount = money.Amount(money.MaxUnits * 100)

// Input carries the user-editable fields of an expense.
type Input struct {
	Category    string       `json:"category"`
	Description string       `json:"description"`
	Amount      money.Amount `json:"amount"`
}

func (in Input) normalize() (Input, error) {
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	switch {
	case in.Category == "":
		return in, fmt.Errorf("%w: category is required", ErrInvalidExpense)
	case in.Description == "":
		return in, fmt.Errorf("%w: description is required", ErrInvalidExpense)
	case in.Amount <= 0 || in.Amount > maxAmount:
		return in, fmt.Errorf("%w: %v", ErrInvalidExpense, money.ErrInvalidAmount)
	}
	return in, nil
}

// Service manages expenses. Every call is scoped to the given user id.
type Service struct {
	store storage.ExpenseStore
	log   logrus.FieldLogger
}

// NewService creates an expense service.
func NewService(store storage.ExpenseStore, log logrus.FieldLogger) *Service {
	return &Service{store: store, log: log.WithField("component", "expense")}
}

// Create records a new expense for userID.
func (s *Service) Create(ctx context.Context, userID int64, in Input) (*models.Expense, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	e, err := s.store.CreateExpense(ctx, userID, in.Category, in.Description, in.Amount)
	if err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "expense_id": e.ID, "amount": e.Amount.String()}).Debug("expense created")
	return e, nil
}

// List returns userID's expenses, newest first, and their exact total.
func (s *Service) List(ctx context.Context, userID int64) (*models.ExpenseList, error) {
	expenses, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}

	var total money.Amount
	for _, e := range expenses {
		if total, err = total.Add(e.Amount); err != nil {
			return nil, fmt.Errorf("total expenses for user %d: %w", userID, err)
		}
	}
	return &models.ExpenseList{Expenses: expenses, TotalAmount: total}, nil
}

// Update overwrites category, description and amount. It returns
// storage.ErrNotFound when the expense is missing or belongs to someone else.
func (s *Service) Update(ctx context.Context, userID, id int64, in Input) error {
	in, err := in.normalize()
	if err != nil {
		return err
	}
	if err := s.store.UpdateExpense(ctx, userID, id, in.Category, in.Description, in.Amount); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update expense %d: %w", id, err)
	}
	return nil
}

// Delete removes an expense under the same ownership rule as Update.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return nil
}

// Summary totals userID's expenses per category. A zero year covers every
// expense. Otherwise only those created in the given UTC year count, narrowed
// to one month when month is non-zero.
func (s *Service) Summary(ctx context.Context, userID int64, year int, month time.Month) (*models.ExpenseSummary, error) {
	expenses, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	summary := &models.ExpenseSummary{Categories: []models.CategoryTotal{}}
	if year != 0 {
		summary.Year, summary.Month = year, int(month)
	}

	byCategory := make(map[string]*models.CategoryTotal)
	for _, e := range expenses {
		created := e.DateCreated.UTC()
		if year != 0 && (created.Year() != year || (month != 0 && created.Month() != month)) {
			continue
		}
		ct, ok := byCategory[e.Category]
		if !ok {
			ct = &models.CategoryTotal{Category: e.Category}
			byCategory[e.Category] = ct
		}
		if ct.Total, err = ct.Total.Add(e.Amount); err != nil {
			return nil, fmt.Errorf("total %q expenses for user %d: %w", e.Category, userID, err)
		}
		if summary.TotalAmount, err = summary.TotalAmount.Add(e.Amount); err != nil {
			return nil, fmt.Errorf("total expenses for user %d: %w", userID, err)
		}
		ct.Count++
	}

	for _, ct := range byCategory {
		if summary.TotalAmount > 0 {
			ct.Percentage = float64(ct.Total) / float64(summary.TotalAmount) * 100
		}
		summary.Categories = append(summary.Categories, *ct)
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		a, b := summary.Categories[i], summary.Categories[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Category < b.Category
	})
	return summary, nil
}
