package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	handler "github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/handler/http"
)

const (
	requestTimeout = 30 * time.Second
	pingTimeout    = 2 * time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Routes is implemented by every HTTP handler of the service.
type Routes interface {
	RegisterRoutes(router chi.Router)
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Error   string `json:"error,omitempty"`
}

func NewRouter(db Pinger, handlers ...Routes) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(handler.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		resp := healthResponse{Status: "healthy", Service: "shop-service"}
		code := http.StatusOK
		if err := db.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("Health check failed")
			resp.Status = "unhealthy"
			resp.Error = "database unavailable"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	})

	for _, h := range handlers {
		h.RegisterRoutes(r)
	}

	return r
}
