package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rpattn/socialql/internal/graphql"
	"github.com/rpattn/socialql/internal/loader"
	"github.com/rpattn/socialql/internal/middleware"
	"github.com/rpattn/socialql/internal/repository"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	Playground     bool
	RequestTimeout time.Duration
	Loader         loader.Options
	Logger         *zap.Logger
}

const maxBodyBytes = 1 << 20

// NewRouter mounts the GraphQL endpoint at /query, the schema source at
// /schema.graphql, a health check at /healthz and, when enabled, the
// playground at /.
func NewRouter(es Schema, store repository.Store, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	}).Handler)

	r.Group(func(r chi.Router) {
		r.Use(chimw.RequestSize(maxBodyBytes))
		if opts.RequestTimeout > 0 {
			r.Use(chimw.Timeout(opts.RequestTimeout))
		}
		r.Use(middleware.DataLoaderMiddleware(store, opts.Loader))
		r.Handle("/query", NewGraphQLHandler(es))
	})

	r.Get("/schema.graphql", schemaHandler)
	r.Get("/healthz", healthHandler(store))

	if opts.Playground {
		r.Handle("/", playground.Handler("socialql playground", "/query"))
	}
	return r
}

func schemaHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graphql.SchemaSDL()))
}

func healthHandler(store repository.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if p, ok := store.(repository.Pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				status, code = "unavailable", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
