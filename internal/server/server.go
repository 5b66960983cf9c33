// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go"

	"geofinder/internal/config"
	"geofinder/internal/domain/place"
	"geofinder/internal/domain/session"
	"geofinder/internal/metrics"
	"geofinder/internal/server/handlers"
	"geofinder/internal/service/catalog"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server. A nil natsConn disables the websocket endpoint.
func NewServer(
	cfg config.ServerConfig,
	natsConn *nats.Conn,
	eventsTopic string,
	sessionManager session.Manager,
	sampler place.Sampler,
	placeCatalog place.Catalog,
	radiusMeters float64,
	names catalog.Names,
	logger *slog.Logger,
) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(instrument)

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Create handler dependencies
	geoHandler := handlers.NewGeoHandler(sampler, placeCatalog, radiusMeters, names)
	sessionHandler := handlers.NewSessionHandler(sessionManager)

	router.Handle("/metrics", metrics.Handler())

	// Routes
	router.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// API version
		r.Route("/v1", func(r chi.Router) {
			// Geo API
			r.Route("/geo", func(r chi.Router) {
				r.Get("/sample", geoHandler.Sample)
				r.Get("/distance", geoHandler.Distance)
			})

			// Stateless catalog API
			r.Post("/places/generate", geoHandler.GeneratePlaces)

			// Sessions API
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", sessionHandler.CreateSession)

				r.Route("/{id}", func(r chi.Router) {
					r.Use(handlers.RequireSessionToken(sessionManager))

					r.Get("/", sessionHandler.GetSession)
					r.Delete("/", sessionHandler.DeleteSession)
					r.Put("/location", sessionHandler.UpdateLocation)
					r.Post("/generate", sessionHandler.Regenerate)
					r.Get("/places", sessionHandler.GetPlaces)
					r.Get("/places.geojson", sessionHandler.GetGeoJSON)
					r.Put("/view", sessionHandler.SetView)

					r.Route("/selection", func(r chi.Router) {
						r.Get("/", sessionHandler.GetSelection)
						r.Put("/", sessionHandler.SelectPlace)
						r.Delete("/", sessionHandler.ClearSelection)
					})
				})
			})
		})
	})

	// WebSocket endpoint for live session events
	if natsConn != nil {
		router.Get("/ws/sessions/{id}", handlers.SessionWebSocketHandler(natsConn, sessionManager, eventsTopic, logger))
	}

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// Handler returns the server's router
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// instrument records request counts and latency by route pattern
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.RequestDurationMs.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}
