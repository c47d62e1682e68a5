package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	handler "github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/handler/http"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/user"
)

type registrar interface {
	RegisterRoutes(router chi.Router)
}

func newID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// do serves one request through a fresh chi router carrying h's routes.
func do(t *testing.T, h registrar, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	router.ServeHTTP(rr, req)
	return rr
}

func asUser(id uuid.UUID) map[string]string {
	return map[string]string{handler.HeaderUserID: id.String()}
}

// staffGuard returns a guard backed by a user service that knows one staff
// member and one regular customer.
func staffGuard(t *testing.T) (guard *handler.Guard, staffID, customerID uuid.UUID) {
	t.Helper()
	staffID, customerID = newID(), newID()

	users := new(MockUserService)
	users.On("GetUserByID", mock.Anything, staffID).Return(&user.User{ID: staffID, IsStaff: true}, nil).Maybe()
	users.On("GetUserByID", mock.Anything, customerID).Return(&user.User{ID: customerID}, nil).Maybe()
	users.On("GetUserByID", mock.Anything, mock.Anything).Return(nil, user.ErrNotFound).Maybe()

	return handler.NewGuard(users), staffID, customerID
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(dst), "Failed to decode response body: %s", rr.Body.String())
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp handler.ErrorResponse
	decodeBody(t, rr, &resp)
	return resp.Error
}

func validationDetails(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp handler.ValidationErrorResponse
	decodeBody(t, rr, &resp)
	require.Equal(t, "Validation failed", resp.Error)
	return resp.Details
}
