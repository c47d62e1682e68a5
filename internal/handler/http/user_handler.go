package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/user"
)

type CreateUserRequest struct {
	FirstName string `json:"first_name" validate:"required,min=2,max=150"`
	LastName  string `json:"last_name" validate:"required,min=2,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

type UserHandler struct {
	service  user.Service
	validate *validator.Validate
}

func NewUserHandler(service user.Service) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *UserHandler) RegisterRoutes(router chi.Router) {
	router.Post("/users", h.handleCreateUser)
	router.Get("/users/{id}", h.handleGetUserByID)
}

func (h *UserHandler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateUserRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	domainUser := user.User{
		FirstName: requestPayload.FirstName,
		LastName:  requestPayload.LastName,
		Email:     strings.ToLower(strings.TrimSpace(requestPayload.Email)),
	}

	createdUser, err := h.service.CreateUser(r.Context(), &domainUser, requestPayload.Password)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create user")
		return
	}

	log.Info().Stringer("user_id", createdUser.ID).Msg("User created")
	respondWithJSON(w, http.StatusCreated, createdUser)
}

func (h *UserHandler) handleGetUserByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	foundUser, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get user by id")
		return
	}

	respondWithJSON(w, http.StatusOK, foundUser)
}
