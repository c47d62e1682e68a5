package user_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/user"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *user.User) (uuid.UUID, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func TestUserService_CreateUser_Success(t *testing.T) {
	mockRepo := new(MockUserRepository)
	userService := user.NewServiceWithCost(mockRepo, bcrypt.MinCost)

	testUser := &user.User{
		FirstName: "Test",
		LastName:  "User",
		Email:     "  Buyer@Example.com ",
	}
	expectedID := uuid.Must(uuid.NewV4())

	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*user.User")).
		Return(expectedID, nil).
		Once()

	createdUser, err := userService.CreateUser(context.Background(), testUser, "somepassword")

	require.NoError(t, err)
	require.Equal(t, expectedID, createdUser.ID)
	require.Equal(t, "buyer@example.com", createdUser.Email)

	err = bcrypt.CompareHashAndPassword([]byte(createdUser.PasswordHash), []byte("somepassword"))
	require.NoError(t, err, "Password hash does not match raw password")
	mockRepo.AssertExpectations(t)
}

func TestUserService_CreateUser_EmptyPassword(t *testing.T) {
	mockRepo := new(MockUserRepository)
	userService := user.NewServiceWithCost(mockRepo, bcrypt.MinCost)

	createdUser, err := userService.CreateUser(context.Background(), &user.User{Email: "a@b.c"}, "")

	require.ErrorIs(t, err, apperror.ErrValidation)
	require.Nil(t, createdUser)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUserService_CreateUser_EmailExists(t *testing.T) {
	mockRepo := new(MockUserRepository)
	userService := user.NewServiceWithCost(mockRepo, bcrypt.MinCost)

	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*user.User")).
		Return(uuid.Nil, user.ErrEmailExists).
		Once()

	createdUser, err := userService.CreateUser(context.Background(), &user.User{Email: "dup@example.com"}, "somepassword")

	require.ErrorIs(t, err, user.ErrEmailExists)
	require.ErrorIs(t, err, apperror.ErrConflict)
	require.Nil(t, createdUser)
	mockRepo.AssertExpectations(t)
}

func TestUserService_GetUserByID(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	expectedUser := user.User{
		ID:        userID,
		FirstName: "Test",
		LastName:  "User",
		Email:     "getbyid@example.com",
		IsStaff:   true,
		CreatedAt: time.Now().Add(-time.Hour),
		UpdatedAt: time.Now(),
	}

	tests := []struct {
		name      string
		repoUser  *user.User
		repoErr   error
		wantErrIs error
	}{
		{name: "found", repoUser: &expectedUser},
		{name: "not_found", repoErr: user.ErrNotFound, wantErrIs: apperror.ErrNotFound},
		{name: "db_failure", repoErr: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			userService := user.NewService(mockRepo)

			if tt.repoUser != nil {
				mockRepo.On("GetByID", mock.Anything, userID).Return(tt.repoUser, nil).Once()
			} else {
				mockRepo.On("GetByID", mock.Anything, userID).Return(nil, tt.repoErr).Once()
			}

			found, err := userService.GetUserByID(context.Background(), userID)
			switch {
			case tt.repoUser != nil:
				require.NoError(t, err)
				require.Empty(t, cmp.Diff(expectedUser, *found))
			case tt.wantErrIs != nil:
				require.ErrorIs(t, err, tt.wantErrIs)
			default:
				require.Error(t, err)
				require.NotErrorIs(t, err, apperror.ErrNotFound)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}
