package user_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/db/dbtest"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/user"
)

func newTestUser(email string) *user.User {
	return &user.User{
		FirstName:    "Test",
		LastName:     "User",
		Email:        email,
		PasswordHash: "hashed_password",
	}
}

func TestUserRepository_Create(t *testing.T) {
	repo := user.NewRepository(dbtest.Open(t, "users"))

	testUser := newTestUser("test.create@example.com")
	createdID, err := repo.Create(context.Background(), testUser)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, createdID)
	require.Equal(t, testUser.ID, createdID)
}

func TestUserRepository_Create_EmailExists(t *testing.T) {
	repo := user.NewRepository(dbtest.Open(t, "users"))

	_, err := repo.Create(context.Background(), newTestUser("test.create@example.com"))
	require.NoError(t, err)

	createdID, err := repo.Create(context.Background(), newTestUser("test.create@example.com"))
	require.ErrorIs(t, err, user.ErrEmailExists)
	require.Equal(t, uuid.Nil, createdID)
}

func TestUserRepository_GetByID(t *testing.T) {
	repo := user.NewRepository(dbtest.Open(t, "users"))

	testUser := newTestUser("test.get@example.com")
	testUser.IsStaff = true
	_, err := repo.Create(context.Background(), testUser)
	require.NoError(t, err)

	found, err := repo.GetByID(context.Background(), testUser.ID)
	require.NoError(t, err)
	require.Equal(t, testUser.Email, found.Email)
	require.Equal(t, testUser.PasswordHash, found.PasswordHash)
	require.True(t, found.IsStaff)
	require.False(t, found.CreatedAt.IsZero())

	missing, _ := uuid.NewV4()
	_, err = repo.GetByID(context.Background(), missing)
	require.ErrorIs(t, err, user.ErrNotFound)
}
