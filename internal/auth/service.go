package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"expense-ledger/internal/models"
	"expense-ledger/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidCredentials is returned for an unknown username or a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrSessionRequired is returned when a request carries no live session.
	ErrSessionRequired = errors.New("authentication required")
)

// Store is the subset of storage the auth service needs.
type Store interface {
	storage.UserStore
	storage.SessionStore
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"email"`
	Username string `json:"username" validate:"alphanum"`
	Password string `json:"password" validate:"required"`
}

// Identity is the user behind a validated session.
type Identity struct {
	User      *models.User
	ExpiresAt time.Time
	// Renewed is set when the session expiry was pushed out by this call.
	Renewed bool
}

// Service implements registration, login and session handling.
type Service struct {
	store    Store
	log      logrus.FieldLogger
	ttl      time.Duration
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates an auth service issuing sessions that live for ttl.
func NewService(store Store, log logrus.FieldLogger, ttl time.Duration) *Service {
	return &Service{
		store:    store,
		log:      log.WithField("component", "auth"),
		ttl:      ttl,
		validate: newValidator(),
		now:      time.Now,
	}
}

// SessionTTL returns how long a fresh session lives.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

// Register validates in and creates the account. It never starts a session.
// Problems with the input are returned as *ValidationError.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)

	verr := &ValidationError{}
	if err := s.validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, fmt.Errorf("validate registration: %w", err)
		}
		for _, fe := range fieldErrs {
			value := ""
			if fe.Field() != "password" {
				value = fmt.Sprint(fe.Value())
			}
			verr.add(newFieldError(fe.Field(), value, fieldMessage(fe)))
		}
	}

	// The unique constraints decide; these lookups only produce friendlier messages.
	if in.Email != "" {
		if taken, err := s.exists(ctx, s.store.GetUserByEmail, in.Email); err != nil {
			return nil, err
		} else if taken {
			verr.add(newFieldError("email", in.Email, MsgEmailTaken))
		}
	}
	if in.Username != "" {
		if taken, err := s.exists(ctx, s.store.GetUserByUsername, in.Username); err != nil {
			return nil, err
		} else if taken {
			verr.add(newFieldError("username", in.Username, MsgUsernameTaken))
		}
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, models.User{
		FullName:     in.FullName,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, conflictToValidation(err, in)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	return user, nil
}

func (s *Service) exists(ctx context.Context, lookup func(context.Context, string) (*models.User, error), key string) (bool, error) {
	_, err := lookup(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("check existing user: %w", err)
	}
}

func conflictToValidation(err error, in RegisterInput) *ValidationError {
	var conflict *storage.ConflictError
	if errors.As(err, &conflict) {
		switch conflict.Field {
		case "email":
			return &ValidationError{Errors: []FieldError{newFieldError("email", in.Email, MsgEmailTaken)}}
		case "username":
			return &ValidationError{Errors: []FieldError{newFieldError("username", in.Username, MsgUsernameTaken)}}
		}
	}
	return &ValidationError{Errors: []FieldError{newFieldError("username", in.Username, MsgAccountTaken)}}
}

// dummyHash is compared against when the username is unknown, so both
// failure paths do the same bcrypt work.
var dummyHash, _ = HashPassword("not-a-real-password")

// Login checks the credentials and opens a new session.
func (s *Service) Login(ctx context.Context, username, password string) (*models.Session, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			CheckPassword(password, dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	if err := s.store.CreateSession(ctx, token, user.ID, expiresAt); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.WithField("user_id", user.ID).Info("user logged in")
	return &models.Session{Token: token, UserID: user.ID, ExpiresAt: expiresAt, LastActivity: now}, nil
}

// Logout destroys the session behind token. Unknown or empty tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Authenticate resolves token to its user. Sessions in the second half of
// their lifetime are renewed.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrSessionRequired
	}
	info, err := s.store.ValidateSession(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionRequired
		}
		return nil, fmt.Errorf("validate session: %w", err)
	}

	id := &Identity{User: info.User, ExpiresAt: info.ExpiresAt}

	now := s.now()
	if info.ExpiresAt.Sub(now) < s.ttl/2 {
		newExpiresAt := now.Add(s.ttl)
		if err := s.store.RenewSession(ctx, token, newExpiresAt); err != nil {
			// Keep serving on the current session.
			s.log.WithError(err).WithField("user_id", info.User.ID).Warn("session renewal failed")
		} else {
			id.ExpiresAt = newExpiresAt
			id.Renewed = true
		}
	}
	return id, nil
}

// Sweep deletes expired sessions.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.CleanExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("clean expired sessions: %w", err)
	}
	if n > 0 {
		s.log.WithField("removed", n).Info("expired sessions removed")
	}
	return n, nil
}
