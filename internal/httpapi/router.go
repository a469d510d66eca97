package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"audiencelens/internal/config"
	"audiencelens/internal/facade"
)

// Router wires the Retrieval Façade to the contractual paths of §6,
// grounded on backend/interfaces/http/rest/router.go's Setup() pattern:
// chi for routing, go-chi/cors for the browser-facing CORS policy, request
// ID + panic recovery middleware, zap for edge logging.
type Router struct {
	svc      *facade.Service
	logger   *zap.Logger
	validate *validator.Validate
	cfg      config.HTTPConfig
}

// NewRouter constructs a Router bound to svc.
func NewRouter(svc *facade.Service, cfg config.HTTPConfig, logger *zap.Logger) *Router {
	return &Router{svc: svc, logger: logger, validate: validator.New(), cfg: cfg}
}

// Setup builds the http.Handler serving every path in §6.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.logRequests)

	origins := rt.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", rt.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/enhanced-variable-picker/search", rt.handleSearch)
		r.Post("/variable-picker/refine", rt.handleRefine)
		r.Get("/enhanced-variable-picker/variable/{code}", rt.handleGetVariable)
		r.Get("/enhanced-variable-picker/category/{category}", rt.handleByCategory)
		r.Get("/enhanced-variable-picker/stats", rt.handleStats)

		r.Post("/start_session", rt.handleStartSession)
		r.Post("/nl/process", rt.handleSessionAction)

		r.Get("/search/migration/status", rt.handleMigrationStatus)
		r.Post("/search/migration/test", rt.handleMigrationTest)
	})

	return r
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
