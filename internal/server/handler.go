package server

import (
	"context"

	gqlgen "github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/lru"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/vektah/gqlparser/v2/ast"
)

const queryCacheSize = 1000

// Schema is an executable schema together with the handler extensions it
// depends on.
type Schema interface {
	gqlgen.ExecutableSchema
	Extensions() []gqlgen.HandlerExtension
	Recover(ctx context.Context, v any) error
}

// NewGraphQLHandler serves es over GET and POST.
func NewGraphQLHandler(es Schema) *handler.Server {
	srv := handler.New(es)
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	srv.SetQueryCache(lru.New[*ast.QueryDocument](queryCacheSize))
	srv.SetRecoverFunc(es.Recover)
	for _, ext := range es.Extensions() {
		srv.Use(ext)
	}
	return srv
}
