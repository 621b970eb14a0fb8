package middleware

import (
	"context"
	"net/http"

	"github.com/rpattn/socialql/internal/loader"
	"github.com/rpattn/socialql/internal/repository"
)

type ctxKey string

const loadersKey ctxKey = "loaders"

// DataLoaderMiddleware attaches a fresh loader set to every request context
func DataLoaderMiddleware(store repository.Store, opts loader.Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loaders := loader.NewLoaders(store, opts)
			next.ServeHTTP(w, r.WithContext(WithLoaders(r.Context(), loaders)))
		})
	}
}

// WithLoaders returns a copy of ctx carrying loaders
func WithLoaders(ctx context.Context, loaders *loader.Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// LoadersFromContext retrieves the request's loader set from context
func LoadersFromContext(ctx context.Context) *loader.Loaders {
	if l, ok := ctx.Value(loadersKey).(*loader.Loaders); ok {
		return l
	}
	return nil
}
