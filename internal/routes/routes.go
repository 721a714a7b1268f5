package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stanstork/stratum-loader/internal/authz"
	"github.com/stanstork/stratum-loader/internal/handlers"
	"github.com/stanstork/stratum-loader/internal/middleware"
)

type Options struct {
	JWTSecret string  // empty leaves the trigger routes open
	RateLimit float64 // trigger requests per second, 0 disables
	RateBurst int
}

// NewRouter sets up the API routes
func NewRouter(load *handlers.LoadHandler, health *handlers.HealthHandler, opts Options) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", health.HealthCheck).Methods(http.MethodGet)

	// Trigger endpoints, sharing one limiter
	limit := middleware.RateLimit(opts.RateLimit, opts.RateBurst)
	guard := func(h http.HandlerFunc) http.Handler {
		var next http.Handler = h
		if opts.JWTSecret != "" {
			next = authz.RequireToken([]byte(opts.JWTSecret))(next)
		}
		return limit(next)
	}
	router.Handle("/load/csv", guard(load.LoadCSV)).Methods(http.MethodPost)
	router.Handle("/load/query", guard(load.LoadQuery)).Methods(http.MethodPost)

	return router
}
