package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// responseWriter captures HTTP status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// ResolverLoggerExtension logs resolver execution times
type ResolverLoggerExtension struct {
	Logger *zap.Logger
}

var _ interface {
	graphql.HandlerExtension
	graphql.FieldInterceptor
} = &ResolverLoggerExtension{}

// ExtensionName implements graphql.HandlerExtension
func (r *ResolverLoggerExtension) ExtensionName() string {
	return "ResolverLogger"
}

// Validate implements graphql.HandlerExtension
func (r *ResolverLoggerExtension) Validate(schema graphql.ExecutableSchema) error {
	return nil
}

// InterceptField logs each resolver duration and errors
func (r *ResolverLoggerExtension) InterceptField(ctx context.Context, next graphql.Resolver) (res interface{}, err error) {
	start := time.Now()
	res, err = next(ctx)
	if r.Logger == nil {
		return res, err
	}
	fc := graphql.GetFieldContext(ctx)
	if fc == nil {
		return res, err
	}
	r.Logger.Debug("resolver",
		zap.String("field", fc.Object+"."+fc.Field.Name),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	return res, err
}

// LoggingMiddleware logs one line per HTTP request
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}
