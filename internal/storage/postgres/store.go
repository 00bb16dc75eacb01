// Package postgres is the PostgreSQL storage backend, selected with DB_DRIVER=postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expense-ledger/internal/models"
	"expense-ledger/internal/money"
	"expense-ledger/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

const uniqueViolationCode = "23505"

// Store provides Postgres-backed persistence.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to databaseURL and runs migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if err := runMigrations(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

const userColumns = "id, full_name, email, username, password_hash, created_at"

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const query = `
		INSERT INTO users (full_name, email, username, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns
	created, err := scanUser(s.pool.QueryRow(ctx, query, user.FullName, user.Email, user.Username, user.PasswordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			switch pgErr.ConstraintName {
			case "users_email_key":
				return nil, &storage.ConflictError{Field: "email"}
			case "users_username_key":
				return nil, &storage.ConflictError{Field: "username"}
			}
			return nil, storage.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

// GetUserByID fetches a user by id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

// GetUserByUsername fetches a user by username, ignoring case.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE lower(username) = lower($1)", username))
}

// GetUserByEmail fetches a user by email address, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)", email))
}

// UserCount returns the number of registered users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// CreateExpense inserts an expense owned by userID.
func (s *Store) CreateExpense(ctx context.Context, userID int64, category, description string, amount money.Amount) (*models.Expense, error) {
	e := models.Expense{UserID: userID, Category: category, Description: description, Amount: amount}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO expenses (user_id, category, description, amount_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING id, date_created`,
		userID, category, description, amount.Cents(),
	).Scan(&e.ID, &e.DateCreated)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}
	return &e, nil
}

// ListExpenses returns the user's expenses, newest first.
func (s *Store) ListExpenses(ctx context.Context, userID int64) ([]models.Expense, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, category, description, amount_cents, date_created
		FROM expenses
		WHERE user_id = $1
		ORDER BY date_created DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	out := make([]models.Expense, 0)
	for rows.Next() {
		var e models.Expense
		var cents int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Category, &e.Description, &cents, &e.DateCreated); err != nil {
			return nil, err
		}
		e.Amount = money.FromCents(cents)
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateExpense overwrites the mutable fields of an expense the user owns.
func (s *Store) UpdateExpense(ctx context.Context, userID, id int64, category, description string, amount money.Amount) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE expenses SET category = $1, description = $2, amount_cents = $3 WHERE id = $4 AND user_id = $5",
		category, description, amount.Cents(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteExpense removes an expense the user owns.
func (s *Store) DeleteExpense(ctx context.Context, userID, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM expenses WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateSession stores a new login session.
func (s *Store) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES ($1, $2, $3, NOW())",
		token, userID, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// ValidateSession returns the live session for token together with its user.
func (s *Store) ValidateSession(ctx context.Context, token string) (*storage.SessionInfo, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT u.id, u.full_name, u.email, u.username, u.password_hash, u.created_at, s.last_activity, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = $1 AND s.expires_at > NOW()`, token)

	var u models.User
	var info storage.SessionInfo
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt, &info.LastActivity, &info.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	info.User = &u
	return &info, nil
}

// RenewSession pushes out a session's expiry.
func (s *Store) RenewSession(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, "UPDATE sessions SET last_activity = NOW(), expires_at = $1 WHERE token = $2", expiresAt, token)
	return err
}

// DeleteSession removes a session by token.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM sessions WHERE token = $1", token)
	return err
}

// CleanExpiredSessions removes all expired sessions.
func (s *Store) CleanExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM sessions WHERE expires_at <= NOW()")
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
