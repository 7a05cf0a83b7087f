package db_test

import (
	"context"
	"testing"

	"qr-entry/internal/accounts/db"
	"qr-entry/internal/database/dbtest"
	"qr-entry/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndLookupAccount(t *testing.T) {
	store := &db.DB{Bun: dbtest.New(t)}
	ctx := context.Background()

	account := &models.Account{Username: "ana", Email: "Ana@Example.com", PasswordHash: "hash"}
	require.NoError(t, store.CreateAccount(ctx, account, models.RoleOrganiser))
	assert.NotZero(t, account.ID)

	byName, err := store.GetAccountByUsername(ctx, "ana")
	require.NoError(t, err)
	require.NotNil(t, byName.Profile)
	assert.Equal(t, models.RoleOrganiser, byName.Role())

	byEmail, err := store.GetAccountByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byEmail.ID)

	byID, err := store.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", byID.Username)

	_, err = store.GetAccountByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestCreateAccount_Duplicate(t *testing.T) {
	store := &db.DB{Bun: dbtest.New(t)}
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, &models.Account{Username: "ana", Email: "a@example.com"}, models.RoleParticipant))

	err := store.CreateAccount(ctx, &models.Account{Username: "ana", Email: "b@example.com"}, models.RoleParticipant)
	assert.ErrorIs(t, err, models.ErrDuplicateAccount)

	err = store.CreateAccount(ctx, &models.Account{Username: "bob", Email: "a@example.com"}, models.RoleParticipant)
	assert.ErrorIs(t, err, models.ErrDuplicateAccount)

	// The failed transactions must not leave orphan profiles or accounts behind.
	_, err = store.GetAccountByUsername(ctx, "bob")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}
