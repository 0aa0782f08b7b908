package users

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/fashionstore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryCreateNormalizes(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	blank := "  "

	user, err := repo.Create(ctx, CreateUserDTO{
		Name:         "  Lan Nguyen ",
		Email:        " Lan@Example.COM ",
		PasswordHash: "hash",
		Phone:        &blank,
	})
	require.NoError(t, err)
	assert.Equal(t, "Lan Nguyen", user.Name)
	assert.Equal(t, "lan@example.com", user.Email)
	assert.Nil(t, user.Phone)
	assert.Equal(t, enums.UserRoleUser, user.Role)
	assert.Equal(t, enums.UserStatusActive, user.Status)

	found, err := repo.FindByEmail(ctx, "LAN@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

func TestRepositoryUpdates(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Name: "Minh", Email: "minh@example.com", PasswordHash: "old", Role: enums.UserRoleAdmin})
	require.NoError(t, err)

	at := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))
	require.NoError(t, repo.UpdatePasswordHash(ctx, user.ID, "new"))
	rows, err := repo.UpdateStatus(ctx, user.ID, enums.UserStatusInactive)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLoginAt)
	assert.True(t, reloaded.LastLoginAt.Equal(at))
	assert.Equal(t, "new", reloaded.PasswordHash)
	assert.Equal(t, enums.UserStatusInactive, reloaded.Status)
	assert.Equal(t, enums.UserRoleAdmin, FromModel(reloaded).Role)
}
