package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"majorcompass/internal/catalog"
	"majorcompass/internal/identity"
	"majorcompass/internal/metrics"
	"majorcompass/internal/service"
	"majorcompass/internal/transport/rest/handler"
	"majorcompass/internal/transport/rest/middleware"
	"majorcompass/internal/transport/ws"
)

// Pinger reports whether a backing store is reachable
type Pinger func(ctx context.Context) error

// Container holds all dependencies for the router
type Container struct {
	AuthService      *service.AuthService
	SessionService   *service.SessionService
	ResultService    *service.ResultService
	DashboardService *service.DashboardService
	Catalog          *catalog.Catalog
	Decoder          *identity.Decoder
	Proxies          *identity.Proxies
	RateLimiter      *middleware.RateLimiter
	WSHub            *ws.Hub

	DeviceSalt     string
	ListMax        int
	AllowedOrigins []string
	Checks         map[string]Pinger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	sessionHandler := handler.NewSessionHandler(c.SessionService, c.Decoder, c.Proxies, c.DeviceSalt)
	resultHandler := handler.NewResultHandler(c.ResultService, c.ListMax)
	dashboardHandler := handler.NewDashboardHandler(c.DashboardService)
	catalogHandler := handler.NewCatalogHandler(c.Catalog)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.AllowedOrigins)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.AllowedOrigins))
	r.Use(middleware.Metrics)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions", sessionHandler.Create).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/sessions/{id}/actions", sessionHandler.Action).Methods("POST", "OPTIONS")
	v1.HandleFunc("/catalog/clusters", catalogHandler.Clusters).Methods("GET", "OPTIONS")

	// Result lookup by code is rate limited per IP
	lookup := v1.NewRoute().Subrouter()
	if c.RateLimiter != nil {
		lookup.Use(c.RateLimiter.Limit)
	}
	lookup.HandleFunc("/results/{code}", resultHandler.GetByCode).Methods("GET", "OPTIONS")

	// WebSocket routes (admin token in query param)
	v1.HandleFunc("/ws/dashboard", wsHandler.DashboardWS).Methods("GET")

	r.HandleFunc("/health", healthHandler(c)).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Admin routes (require admin auth)
	adminRoutes := v1.PathPrefix("/admin").Subrouter()
	adminRoutes.Use(authMW.RequireAdmin)

	adminRoutes.HandleFunc("/results", resultHandler.List).Methods("GET", "OPTIONS")
	adminRoutes.HandleFunc("/results/student/{studentId}", resultHandler.GetByStudentID).Methods("GET", "OPTIONS")
	adminRoutes.HandleFunc("/dashboard", dashboardHandler.Stats).Methods("GET", "OPTIONS")

	return r
}

func healthHandler(c *Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(c.Checks))
		status := "ok"
		for name, ping := range c.Checks {
			if err := ping(ctx); err != nil {
				checks[name] = err.Error()
				status = "degraded"
				continue
			}
			checks[name] = "ok"
		}

		sessions := 0
		if c.SessionService != nil {
			sessions = c.SessionService.Len()
		}
		// degraded still answers 200: results fall back to the local store
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   status,
			"checks":   checks,
			"sessions": sessions,
		})
	}
}

func corsMiddleware(allowedOrigins []string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := allowedOrigin(allowedOrigins, r.Header.Get("Origin"))
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				if origin != "*" {
					w.Header().Add("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allowedOrigin(allowed []string, origin string) string {
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return "*"
		}
		if origin != "" && o == origin {
			return origin
		}
	}
	return ""
}
