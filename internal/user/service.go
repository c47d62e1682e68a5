package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
)

type Service interface {
	CreateUser(ctx context.Context, user *User, password string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
}

type service struct {
	repo Repository
	cost int
}

func NewService(repo Repository) Service {
	return &service{repo: repo, cost: bcrypt.DefaultCost}
}

// NewServiceWithCost lets tests trade hash strength for speed.
func NewServiceWithCost(repo Repository, cost int) Service {
	return &service{repo: repo, cost: cost}
}

func (s *service) CreateUser(ctx context.Context, user *User, password string) (*User, error) {
	if password == "" {
		return nil, apperror.Validation("password", "cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to hash password")
		return nil, fmt.Errorf("service: internal error hashing password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	createdID, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			log.Warn().Str("email", user.Email).Msg("service: email already registered")
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Msg("service: failed to create user in repository")
		return nil, fmt.Errorf("service: failed to save user: %w", err)
	}

	user.ID = createdID
	log.Info().Stringer("user_id", user.ID).Msg("service: user created")

	return user, nil
}

func (s *service) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to get user by id")
		return nil, fmt.Errorf("service: failed to get user by id '%s': %w", id, err)
	}

	return u, nil
}
