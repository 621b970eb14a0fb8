package graphql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpattn/socialql/internal/executor"
	"github.com/rpattn/socialql/internal/loader"
	"github.com/rpattn/socialql/internal/middleware"
	"github.com/rpattn/socialql/internal/repository"

	gqlgen "github.com/99designs/gqlgen/graphql"
	gqlexec "github.com/99designs/gqlgen/graphql/executor"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Request is one GraphQL request as received from a client.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Config tunes the service.
type Config struct {
	// MaxDepth is the selection depth ceiling; zero means DefaultMaxDepth.
	MaxDepth int
	// DisableIntrospection rejects __schema and __type selections.
	DisableIntrospection bool
	Loader               loader.Options
	Logger               *zap.Logger
}

// Service is the executable schema of the social read API. gqlgen parses,
// validates and coerces every operation; Exec then runs it on the batching
// executor.
type Service struct {
	schema   *ast.Schema
	store    repository.Store
	registry *Registry
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer
	exec     *gqlexec.Executor
}

var _ gqlgen.ExecutableSchema = (*Service)(nil)

// NewService creates a service reading from store
func NewService(store repository.Store, cfg Config) (*Service, error) {
	schema, err := LoadSchema()
	if err != nil {
		return nil, err
	}
	registry := NewRegistry()
	if missing := registry.Missing(schema); len(missing) > 0 {
		return nil, fmt.Errorf("schema fields without resolvers: %v", missing)
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Loader.Logger == nil {
		cfg.Loader.Logger = cfg.Logger
	}
	s := &Service{
		schema:   schema,
		store:    store,
		registry: registry,
		cfg:      cfg,
		logger:   cfg.Logger,
		tracer:   otel.Tracer("github.com/rpattn/socialql/internal/graphql"),
	}

	s.exec = gqlexec.New(s)
	s.exec.SetRecoverFunc(s.Recover)
	for _, ext := range s.Extensions() {
		s.exec.Use(ext)
	}
	return s, nil
}

// Schema returns the executable schema.
func (s *Service) Schema() *ast.Schema {
	return s.schema
}

// Complexity leaves every field at gqlgen's default cost.
func (s *Service) Complexity(context.Context, string, string, int, map[string]any) (int, bool) {
	return 0, false
}

// Extensions returns the handler extensions every transport must install:
// introspection unless disabled, the depth guard and resolver logging.
func (s *Service) Extensions() []gqlgen.HandlerExtension {
	var exts []gqlgen.HandlerExtension
	if !s.cfg.DisableIntrospection {
		exts = append(exts, extension.Introspection{})
	}
	return append(exts,
		DepthLimit{Max: s.cfg.MaxDepth},
		&middleware.ResolverLoggerExtension{Logger: s.logger},
	)
}

// Recover turns a panic into the error clients see. Resolver panics arrive
// as *panicError and keep the stack of the goroutine that panicked.
func (s *Service) Recover(ctx context.Context, v any) error {
	if p, ok := v.(*panicError); ok {
		s.logger.Error("resolver panicked",
			zap.Any("panic", p.value),
			zap.ByteString("stack", p.stack),
		)
	} else {
		s.logger.Error("graphql request panicked", zap.Any("panic", v), zap.Stack("stack"))
	}
	return gqlerror.Errorf("internal server error")
}

// NewLoaders builds a loader set configured like the service's own.
func (s *Service) NewLoaders() *loader.Loaders {
	return loader.NewLoaders(s.store, s.cfg.Loader)
}

// Execute runs req in process through the same pipeline the HTTP transports
// use. Rejected requests carry null data.
func (s *Service) Execute(ctx context.Context, req Request) *gqlgen.Response {
	ctx = gqlgen.StartOperationTrace(ctx)
	now := gqlgen.Now()
	params := &gqlgen.RawParams{
		Query:         req.Query,
		OperationName: req.OperationName,
		Variables:     req.Variables,
		ReadTime:      gqlgen.TraceTiming{Start: now, End: now},
	}

	oc, errs := s.exec.CreateOperationContext(ctx, params)
	if errs != nil {
		return s.exec.DispatchError(gqlgen.WithOperationContext(ctx, oc), errs)
	}
	responses, ctx := s.exec.DispatchOperation(ctx, oc)
	return responses(ctx)
}

// Exec runs the validated operation in ctx.
func (s *Service) Exec(ctx context.Context) gqlgen.ResponseHandler {
	oc := gqlgen.GetOperationContext(ctx)

	ctx, span := s.tracer.Start(ctx, "graphql.execute", trace.WithAttributes(
		attribute.String("graphql.operation.name", oc.OperationName),
	))
	defer span.End()

	loaders := middleware.LoadersFromContext(ctx)
	if loaders == nil {
		loaders = s.NewLoaders()
	}
	rc := &RequestContext{
		Store:   s.store,
		Loaders: loaders,
		Plan:    PlanUsers(oc.Doc, oc.Operation, oc.Variables),
	}
	rt := &fieldRuntime{
		registry:   s.registry,
		rc:         rc,
		intro:      &introspection{schema: s.schema, disabled: oc.DisableIntrospection},
		middleware: oc.ResolverMiddleware,
		recover:    oc.RecoverFunc,
	}
	result := executor.New(s.schema, rt).Execute(ctx, oc.Doc, oc.Operation, oc.Variables)

	resp := &gqlgen.Response{Errors: result.Errors}
	if result.Data != nil {
		data, err := json.Marshal(result.Data)
		if err != nil {
			resp.Errors = append(resp.Errors, gqlerror.Errorf("failed to encode response: %v", err))
		} else {
			resp.Data = data
		}
	}

	if len(resp.Errors) > 0 {
		span.SetStatus(codes.Error, resp.Errors[0].Message)
		s.logger.Debug("graphql request finished with errors",
			zap.String("operation", oc.OperationName),
			zap.Int("errors", len(resp.Errors)),
			zap.String("first", resp.Errors[0].Message),
		)
	}
	return gqlgen.OneShot(resp)
}
