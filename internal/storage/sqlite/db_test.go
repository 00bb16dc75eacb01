package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"expense-ledger/internal/auth"
	"expense-ledger/internal/models"
	"expense-ledger/internal/money"
	"expense-ledger/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func newUser(t *testing.T, db *DB, username, email string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err, "failed to hash password")
	user, err := db.CreateUser(context.Background(), models.User{
		FullName:     "Test " + username,
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	})
	require.NoError(t, err, "failed to create user %s", username)
	return user
}

// UserTestSuite covers the users table and its unique constraints.
type UserTestSuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
}

func (suite *UserTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()
}

func (suite *UserTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *UserTestSuite) TestCreateAndLookup() {
	user := newUser(suite.T(), suite.db, "janed", "jane@x.com")
	assert.NotZero(suite.T(), user.ID)
	assert.Equal(suite.T(), "Test janed", user.FullName)

	byName, err := suite.db.GetUserByUsername(suite.ctx, "janed")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), user.ID, byName.ID)

	byEmail, err := suite.db.GetUserByEmail(suite.ctx, "jane@x.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), user.ID, byEmail.ID)

	_, err = suite.db.GetUserByUsername(suite.ctx, "nobody")
	assert.ErrorIs(suite.T(), err, storage.ErrNotFound)
}

func (suite *UserTestSuite) TestDuplicateEmailRejected() {
	newUser(suite.T(), suite.db, "janed", "jane@x.com")

	_, err := suite.db.CreateUser(suite.ctx, models.User{FullName: "Other", Email: "jane@x.com", Username: "other", PasswordHash: "x"})
	require.Error(suite.T(), err)
	assert.ErrorIs(suite.T(), err, storage.ErrAlreadyExists)

	var conflict *storage.ConflictError
	require.ErrorAs(suite.T(), err, &conflict)
	assert.Equal(suite.T(), "email", conflict.Field)

	count, err := suite.db.UserCount(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count)
}

func (suite *UserTestSuite) TestDuplicateUsernameRejected() {
	newUser(suite.T(), suite.db, "janed", "jane@x.com")

	_, err := suite.db.CreateUser(suite.ctx, models.User{FullName: "Other", Email: "other@x.com", Username: "janed", PasswordHash: "x"})
	var conflict *storage.ConflictError
	require.ErrorAs(suite.T(), err, &conflict)
	assert.Equal(suite.T(), "username", conflict.Field)
}

func (suite *UserTestSuite) TestUniquenessIgnoresCase() {
	jane := newUser(suite.T(), suite.db, "janed", "jane@x.com")

	_, err := suite.db.CreateUser(suite.ctx, models.User{FullName: "Other", Email: "JANE@X.com", Username: "other", PasswordHash: "x"})
	var conflict *storage.ConflictError
	require.ErrorAs(suite.T(), err, &conflict)
	assert.Equal(suite.T(), "email", conflict.Field)

	_, err = suite.db.CreateUser(suite.ctx, models.User{FullName: "Other", Email: "other@x.com", Username: "JaneD", PasswordHash: "x"})
	require.ErrorAs(suite.T(), err, &conflict)
	assert.Equal(suite.T(), "username", conflict.Field)

	byName, err := suite.db.GetUserByUsername(suite.ctx, "JANED")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), jane.ID, byName.ID)
	byEmail, err := suite.db.GetUserByEmail(suite.ctx, "Jane@X.COM")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), jane.ID, byEmail.ID)

	count, err := suite.db.UserCount(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count)
}

func (suite *UserTestSuite) TestConcurrentDuplicateInserts() {
	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = suite.db.CreateUser(suite.ctx, models.User{FullName: "Racer", Email: "race@x.com", Username: "racer", PasswordHash: "x"})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(suite.T(), err, storage.ErrAlreadyExists)
	}
	assert.Equal(suite.T(), 1, succeeded)

	count, err := suite.db.UserCount(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count)
}

// ExpenseTestSuite covers per-user expense CRUD.
type ExpenseTestSuite struct {
	suite.Suite
	db    *DB
	ctx   context.Context
	alice *models.User
	bob   *models.User
}

func (suite *ExpenseTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()
	suite.alice = newUser(suite.T(), db, "alice", "alice@x.com")
	suite.bob = newUser(suite.T(), db, "bob", "bob@x.com")
}

func (suite *ExpenseTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *ExpenseTestSuite) TestCreateExpense() {
	e, err := suite.db.CreateExpense(suite.ctx, suite.alice.ID, "food", "lunch", money.Amount(1250))
	require.NoError(suite.T(), err)
	assert.NotZero(suite.T(), e.ID)
	assert.Equal(suite.T(), suite.alice.ID, e.UserID)
	assert.WithinDuration(suite.T(), time.Now(), e.DateCreated, 5*time.Second)
}

func (suite *ExpenseTestSuite) TestListExpensesNewestFirst() {
	for _, d := range []string{"Bus", "Coffee", "Snack"} {
		_, err := suite.db.CreateExpense(suite.ctx, suite.alice.ID, "misc", d, money.Amount(100))
		require.NoError(suite.T(), err, "failed to create expense: %s", d)
	}

	result, err := suite.db.ListExpenses(suite.ctx, suite.alice.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), result, 3)
	assert.Equal(suite.T(), "Snack", result[0].Description)
	assert.Equal(suite.T(), "Bus", result[2].Description)

	loaded := result[0].DateCreated
	assert.False(suite.T(), loaded.IsZero(), "date_created should round-trip")
}

func (suite *ExpenseTestSuite) TestListIsScopedToOwner() {
	_, err := suite.db.CreateExpense(suite.ctx, suite.alice.ID, "food", "alice lunch", money.Amount(500))
	require.NoError(suite.T(), err)
	_, err = suite.db.CreateExpense(suite.ctx, suite.bob.ID, "food", "bob lunch", money.Amount(700))
	require.NoError(suite.T(), err)

	aliceList, err := suite.db.ListExpenses(suite.ctx, suite.alice.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), aliceList, 1)
	assert.Equal(suite.T(), "alice lunch", aliceList[0].Description)

	empty, err := suite.db.ListExpenses(suite.ctx, 9999)
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), empty)
	assert.Empty(suite.T(), empty)
}

func (suite *ExpenseTestSuite) TestUpdateKeepsDateCreated() {
	e, err := suite.db.CreateExpense(suite.ctx, suite.alice.ID, "food", "lunch", money.Amount(1250))
	require.NoError(suite.T(), err)

	err = suite.db.UpdateExpense(suite.ctx, suite.alice.ID, e.ID, "food", "dinner", money.Amount(2000))
	require.NoError(suite.T(), err)

	list, err := suite.db.ListExpenses(suite.ctx, suite.alice.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), list, 1)
	assert.Equal(suite.T(), "dinner", list[0].Description)
	assert.Equal(suite.T(), money.Amount(2000), list[0].Amount)
	assert.True(suite.T(), e.DateCreated.Equal(list[0].DateCreated), "date_created must not change")
}

func (suite *ExpenseTestSuite) TestUpdateAndDeleteOtherUsersExpense() {
	e, err := suite.db.CreateExpense(suite.ctx, suite.alice.ID, "food", "lunch", money.Amount(1250))
	require.NoError(suite.T(), err)

	err = suite.db.UpdateExpense(suite.ctx, suite.bob.ID, e.ID, "x", "hijack", money.Amount(1))
	assert.ErrorIs(suite.T(), err, storage.ErrNotFound)

	err = suite.db.DeleteExpense(suite.ctx, suite.bob.ID, e.ID)
	assert.ErrorIs(suite.T(), err, storage.ErrNotFound)

	list, err := suite.db.ListExpenses(suite.ctx, suite.alice.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), list, 1)
	assert.Equal(suite.T(), "lunch", list[0].Description)
}

func (suite *ExpenseTestSuite) TestDeleteExpense() {
	e, err := suite.db.CreateExpense(suite.ctx, suite.alice.ID, "food", "lunch", money.Amount(1250))
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.db.DeleteExpense(suite.ctx, suite.alice.ID, e.ID))
	assert.ErrorIs(suite.T(), suite.db.DeleteExpense(suite.ctx, suite.alice.ID, e.ID), storage.ErrNotFound)
}

// SessionTestSuite provides a test suite for session operations
type SessionTestSuite struct {
	suite.Suite
	db   *DB
	ctx  context.Context
	user *models.User
}

func (suite *SessionTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()
	suite.user = newUser(suite.T(), db, "testuser", "test@x.com")
}

func (suite *SessionTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *SessionTestSuite) TestCreateAndValidateSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	err = suite.db.CreateSession(suite.ctx, token, suite.user.ID, time.Now().Add(24*time.Hour))
	require.NoError(suite.T(), err)

	info, err := suite.db.ValidateSession(suite.ctx, token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", info.User.Username)
	assert.Less(suite.T(), time.Since(info.LastActivity), 5*time.Second, "LastActivity should be recent")
}

func (suite *SessionTestSuite) TestExpiredSessionIsInvalid() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	err = suite.db.CreateSession(suite.ctx, token, suite.user.ID, time.Now().Add(-time.Minute))
	require.NoError(suite.T(), err)

	_, err = suite.db.ValidateSession(suite.ctx, token)
	assert.ErrorIs(suite.T(), err, storage.ErrNotFound)

	removed, err := suite.db.CleanExpiredSessions(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), removed)
}

func (suite *SessionTestSuite) TestRenewSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	err = suite.db.CreateSession(suite.ctx, token, suite.user.ID, time.Now().Add(time.Hour))
	require.NoError(suite.T(), err)

	// Wait a moment to ensure timestamps differ
	time.Sleep(10 * time.Millisecond)

	original, err := suite.db.ValidateSession(suite.ctx, token)
	require.NoError(suite.T(), err)

	err = suite.db.RenewSession(suite.ctx, token, time.Now().Add(48*time.Hour))
	require.NoError(suite.T(), err)

	updated, err := suite.db.ValidateSession(suite.ctx, token)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), updated.LastActivity.After(original.LastActivity),
		"LastActivity should be updated after renewal")
	assert.True(suite.T(), updated.ExpiresAt.After(original.ExpiresAt),
		"ExpiresAt should be extended after renewal")
}

func (suite *SessionTestSuite) TestDeleteSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	err = suite.db.CreateSession(suite.ctx, token, suite.user.ID, time.Now().Add(time.Hour))
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.db.DeleteSession(suite.ctx, token))
	_, err = suite.db.ValidateSession(suite.ctx, token)
	assert.Error(suite.T(), err, "expected error after deleting session")

	// Deleting again is a no-op.
	assert.NoError(suite.T(), suite.db.DeleteSession(suite.ctx, token))
}

func TestUserSuite(t *testing.T) {
	suite.Run(t, new(UserTestSuite))
}

func TestExpenseSuite(t *testing.T) {
	suite.Run(t, new(ExpenseTestSuite))
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
