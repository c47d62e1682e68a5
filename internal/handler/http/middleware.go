package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/cart"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/user"
)

// Identity is asserted by the gateway in front of the service.
const (
	HeaderUserID     = "X-User-ID"
	HeaderSessionKey = "X-Session-Key"
)

type contextKey int

const (
	userIDKey contextKey = iota
	ownerKey
)

// Guard resolves the acting identity of a request.
type Guard struct {
	users user.Service
}

func NewGuard(users user.Service) *Guard {
	return &Guard{users: users}
}

func parseUserID(r *http.Request) (uuid.UUID, bool, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if raw == "" {
		return uuid.Nil, false, nil
	}
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

// RequireUser rejects requests without a valid X-User-ID.
func (g *Guard) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok, err := parseUserID(r)
		if err != nil {
			log.Warn().Err(err).Msg("Invalid user identity header")
			respondWithError(w, http.StatusBadRequest, "Invalid X-User-ID header")
			return
		}
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	})
}

// RequireStaff admits only users flagged as staff.
func (g *Guard) RequireStaff(next http.Handler) http.Handler {
	return g.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := userIDFrom(r.Context())

		u, err := g.users.GetUserByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				respondWithError(w, http.StatusForbidden, "Staff access required")
				return
			}
			log.Error().Err(err).Stringer("user_id", id).Msg("Failed to load acting user")
			respondWithError(w, http.StatusInternalServerError, "Failed to authorize request")
			return
		}
		if !u.IsStaff {
			log.Warn().Stringer("user_id", id).Str("path", r.URL.Path).Msg("Staff route called by non-staff user")
			respondWithError(w, http.StatusForbidden, "Staff access required")
			return
		}

		next.ServeHTTP(w, r)
	}))
}

// RequireCartOwner accepts a user id or, for anonymous shoppers, a session
// key.
func (g *Guard) RequireCartOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok, err := parseUserID(r)
		if err != nil {
			log.Warn().Err(err).Msg("Invalid user identity header")
			respondWithError(w, http.StatusBadRequest, "Invalid X-User-ID header")
			return
		}

		var owner cart.Owner
		if ok {
			owner = cart.UserOwner(id)
		} else {
			owner = cart.SessionOwner(strings.TrimSpace(r.Header.Get(HeaderSessionKey)))
		}
		if !owner.IsUser() && owner.SessionKey == "" {
			respondWithError(w, http.StatusUnauthorized, "Either X-User-ID or X-Session-Key is required")
			return
		}
		if err := owner.Validate(); err != nil {
			respondWithServiceError(w, err, "Invalid cart owner")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
	})
}

func userIDFrom(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userIDKey).(uuid.UUID)
	return id
}

func ownerFrom(ctx context.Context) cart.Owner {
	owner, _ := ctx.Value(ownerKey).(cart.Owner)
	return owner
}

// RequestLogger writes one access log line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			event := log.Info()
			if ww.Status() >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		}()

		next.ServeHTTP(ww, r)
	})
}
