package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"expense-ledger/internal/models"
	"expense-ledger/internal/money"
	"expense-ledger/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// StoreTestSuite runs against a disposable database named by TEST_DATABASE_URL.
// Every table is truncated before each test.
type StoreTestSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (suite *StoreTestSuite) SetupSuite() {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		suite.T().Skip("set TEST_DATABASE_URL to run the postgres store tests")
	}
	suite.ctx = context.Background()
	store, err := NewStore(suite.ctx, url)
	require.NoError(suite.T(), err, "failed to connect to test database")
	suite.store = store
}

func (suite *StoreTestSuite) TearDownSuite() {
	if suite.store != nil {
		suite.store.Close()
	}
}

func (suite *StoreTestSuite) SetupTest() {
	_, err := suite.store.pool.Exec(suite.ctx, "TRUNCATE sessions, expenses, users RESTART IDENTITY CASCADE")
	require.NoError(suite.T(), err, "failed to reset tables")
}

func (suite *StoreTestSuite) newUser(username, email string) *models.User {
	user, err := suite.store.CreateUser(suite.ctx, models.User{
		FullName:     "Test " + username,
		Email:        email,
		Username:     username,
		PasswordHash: "$2a$10$placeholder",
	})
	require.NoError(suite.T(), err, "failed to create user %s", username)
	return user
}

func (suite *StoreTestSuite) TestUsersAreUnique() {
	user := suite.newUser("janed", "jane@x.com")

	found, err := suite.store.GetUserByEmail(suite.ctx, "jane@x.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), user.ID, found.ID)

	_, err = suite.store.CreateUser(suite.ctx, models.User{FullName: "x", Email: "jane@x.com", Username: "other", PasswordHash: "h"})
	var conflict *storage.ConflictError
	require.ErrorAs(suite.T(), err, &conflict)
	assert.Equal(suite.T(), "email", conflict.Field)

	_, err = suite.store.CreateUser(suite.ctx, models.User{FullName: "x", Email: "other@x.com", Username: "janed", PasswordHash: "h"})
	require.ErrorAs(suite.T(), err, &conflict)
	assert.Equal(suite.T(), "username", conflict.Field)
	assert.ErrorIs(suite.T(), err, storage.ErrAlreadyExists)

	count, err := suite.store.UserCount(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count)

	_, err = suite.store.GetUserByUsername(suite.ctx, "ghost")
	assert.ErrorIs(suite.T(), err, storage.ErrNotFound)
}

func (suite *StoreTestSuite) TestUniquenessIgnoresCase() {
	jane := suite.newUser("janed", "jane@x.com")

	_, err := suite.store.CreateUser(suite.ctx, models.User{FullName: "x", Email: "JANE@X.com", Username: "other", PasswordHash: "h"})
	var conflict *storage.ConflictError
	require.ErrorAs(suite.T(), err, &conflict)
	assert.Equal(suite.T(), "email", conflict.Field)

	_, err = suite.store.CreateUser(suite.ctx, models.User{FullName: "x", Email: "other@x.com", Username: "JaneD", PasswordHash: "h"})
	require.ErrorAs(suite.T(), err, &conflict)
	assert.Equal(suite.T(), "username", conflict.Field)

	found, err := suite.store.GetUserByUsername(suite.ctx, "JANED")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), jane.ID, found.ID)
}

func (suite *StoreTestSuite) TestExpensesAreScopedToOwner() {
	alice := suite.newUser("alice", "alice@x.com")
	bob := suite.newUser("bob", "bob@x.com")

	first, err := suite.store.CreateExpense(suite.ctx, alice.ID, "food", "lunch", money.FromCents(1250))
	require.NoError(suite.T(), err)
	second, err := suite.store.CreateExpense(suite.ctx, alice.ID, "food", "dinner", money.FromCents(2000))
	require.NoError(suite.T(), err)

	list, err := suite.store.ListExpenses(suite.ctx, alice.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), list, 2)
	assert.Equal(suite.T(), second.ID, list[0].ID, "newest first")
	assert.Equal(suite.T(), first.ID, list[1].ID)

	empty, err := suite.store.ListExpenses(suite.ctx, bob.ID)
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), empty)
	assert.Empty(suite.T(), empty)

	assert.ErrorIs(suite.T(), suite.store.UpdateExpense(suite.ctx, bob.ID, first.ID, "x", "y", 1), storage.ErrNotFound)
	assert.ErrorIs(suite.T(), suite.store.DeleteExpense(suite.ctx, bob.ID, first.ID), storage.ErrNotFound)

	require.NoError(suite.T(), suite.store.UpdateExpense(suite.ctx, alice.ID, first.ID, "food", "brunch", money.FromCents(900)))
	list, err = suite.store.ListExpenses(suite.ctx, alice.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "brunch", list[1].Description)
	assert.Equal(suite.T(), money.FromCents(900), list[1].Amount)
	assert.WithinDuration(suite.T(), first.DateCreated, list[1].DateCreated, time.Second)

	require.NoError(suite.T(), suite.store.DeleteExpense(suite.ctx, alice.ID, first.ID))
	assert.ErrorIs(suite.T(), suite.store.DeleteExpense(suite.ctx, alice.ID, first.ID), storage.ErrNotFound)
}

func (suite *StoreTestSuite) TestSessions() {
	user := suite.newUser("janed", "jane@x.com")

	require.NoError(suite.T(), suite.store.CreateSession(suite.ctx, "live", user.ID, time.Now().Add(time.Hour)))
	require.NoError(suite.T(), suite.store.CreateSession(suite.ctx, "dead", user.ID, time.Now().Add(-time.Minute)))

	info, err := suite.store.ValidateSession(suite.ctx, "live")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), user.ID, info.User.ID)

	_, err = suite.store.ValidateSession(suite.ctx, "dead")
	assert.ErrorIs(suite.T(), err, storage.ErrNotFound)

	renewed := time.Now().Add(2 * time.Hour)
	require.NoError(suite.T(), suite.store.RenewSession(suite.ctx, "live", renewed))
	info, err = suite.store.ValidateSession(suite.ctx, "live")
	require.NoError(suite.T(), err)
	assert.WithinDuration(suite.T(), renewed, info.ExpiresAt, time.Second)

	removed, err := suite.store.CleanExpiredSessions(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), removed)

	require.NoError(suite.T(), suite.store.DeleteSession(suite.ctx, "live"))
	require.NoError(suite.T(), suite.store.DeleteSession(suite.ctx, "live"))
	_, err = suite.store.ValidateSession(suite.ctx, "live")
	assert.ErrorIs(suite.T(), err, storage.ErrNotFound)
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
