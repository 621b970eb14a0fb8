package graphql

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/rpattn/socialql/internal/domain"
	"github.com/rpattn/socialql/internal/executor"
	"github.com/rpattn/socialql/internal/loader"
	"github.com/rpattn/socialql/internal/repository"

	gqlgen "github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
)

// Strategy says how a field obtains its value.
type Strategy int

const (
	// StrategyScalar reads the value off the already resolved parent.
	StrategyScalar Strategy = iota
	// StrategyLoader delegates to one batch loader keyed by the parent.
	StrategyLoader
	// StrategyRoot runs a root query resolver.
	StrategyRoot
)

func (s Strategy) String() string {
	switch s {
	case StrategyScalar:
		return "scalar"
	case StrategyLoader:
		return "loader"
	case StrategyRoot:
		return "root"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ScalarFunc reads a field from its parent value.
type ScalarFunc func(source any) (any, error)

// KeyFunc extracts the loader key from a parent value. ok is false when the
// parent has no key, which resolves the field to null.
type KeyFunc func(source any) (key any, ok bool)

// RootFunc resolves a root field.
type RootFunc func(ctx context.Context, rc *RequestContext, args map[string]any) executor.Resolution

// FieldKey identifies a field of an object type.
type FieldKey struct {
	Type  string
	Field string
}

func (k FieldKey) String() string {
	return k.Type + "." + k.Field
}

// FieldResolver is the registered resolution strategy of one field.
type FieldResolver struct {
	Strategy Strategy
	Read     ScalarFunc
	Loader   loader.ID
	Key      KeyFunc
	Resolve  RootFunc
}

// Registry maps every field of the schema to its resolver.
type Registry struct {
	fields map[FieldKey]FieldResolver
}

// NewRegistry returns the registry of the social schema.
func NewRegistry() *Registry {
	r := &Registry{fields: make(map[FieldKey]FieldResolver)}

	r.scalar("MemberType", "id", read(func(m *domain.MemberType) any { return m.ID }))
	r.scalar("MemberType", "discount", read(func(m *domain.MemberType) any { return m.Discount }))
	r.scalar("MemberType", "postsLimitPerMonth", read(func(m *domain.MemberType) any { return m.PostsLimitPerMonth }))

	r.scalar("Post", "id", read(func(p *domain.Post) any { return p.ID }))
	r.scalar("Post", "title", read(func(p *domain.Post) any { return p.Title }))
	r.scalar("Post", "content", read(func(p *domain.Post) any { return p.Content }))
	r.scalar("Post", "authorId", read(func(p *domain.Post) any { return p.AuthorID }))
	r.delegate("Post", "author", loader.UserByID, key(func(p *domain.Post) any { return p.AuthorID }))

	r.scalar("Profile", "id", read(func(p *domain.Profile) any { return p.ID }))
	r.scalar("Profile", "isMale", read(func(p *domain.Profile) any { return p.IsMale }))
	r.scalar("Profile", "yearOfBirth", read(func(p *domain.Profile) any { return p.YearOfBirth }))
	r.scalar("Profile", "memberTypeId", read(func(p *domain.Profile) any { return p.MemberTypeID }))
	r.scalar("Profile", "userId", read(func(p *domain.Profile) any { return p.UserID }))
	r.delegate("Profile", "memberType", loader.MemberTypeByID, key(func(p *domain.Profile) any { return p.MemberTypeID }))
	r.delegate("Profile", "user", loader.UserByID, key(func(p *domain.Profile) any { return p.UserID }))

	r.scalar("User", "id", read(func(u *domain.User) any { return u.ID }))
	r.scalar("User", "name", read(func(u *domain.User) any { return u.Name }))
	r.scalar("User", "balance", read(func(u *domain.User) any { return u.Balance }))
	r.delegate("User", "profile", loader.ProfileByUser, key(func(u *domain.User) any { return u.ID }))
	r.delegate("User", "posts", loader.PostsByAuthor, key(func(u *domain.User) any { return u.ID }))
	r.delegate("User", "userSubscribedTo", loader.SubscribedTo, key(func(u *domain.User) any { return u.ID }))
	r.delegate("User", "subscribedToUser", loader.Subscribers, key(func(u *domain.User) any { return u.ID }))

	r.root("memberTypes", resolveMemberTypes)
	r.root("memberType", resolveMemberType)
	r.root("posts", resolvePosts)
	r.root("post", resolvePost)
	r.root("users", resolveUsers)
	r.root("user", resolveUser)
	r.root("profiles", resolveProfiles)
	r.root("profile", resolveProfile)

	return r
}

func (r *Registry) scalar(typ, field string, fn ScalarFunc) {
	r.fields[FieldKey{typ, field}] = FieldResolver{Strategy: StrategyScalar, Read: fn}
}

func (r *Registry) delegate(typ, field string, id loader.ID, fn KeyFunc) {
	r.fields[FieldKey{typ, field}] = FieldResolver{Strategy: StrategyLoader, Loader: id, Key: fn}
}

func (r *Registry) root(field string, fn RootFunc) {
	r.fields[FieldKey{"Query", field}] = FieldResolver{Strategy: StrategyRoot, Resolve: fn}
}

// Lookup returns the resolver registered for typ.field.
func (r *Registry) Lookup(typ, field string) (FieldResolver, bool) {
	fr, ok := r.fields[FieldKey{typ, field}]
	return fr, ok
}

// Missing lists the object fields of schema that have no resolver.
func (r *Registry) Missing(schema *ast.Schema) []FieldKey {
	var missing []FieldKey
	for name, def := range schema.Types {
		if def.Kind != ast.Object || def.BuiltIn || strings.HasPrefix(name, "__") {
			continue
		}
		for _, f := range def.Fields {
			if strings.HasPrefix(f.Name, "__") {
				continue
			}
			if _, ok := r.Lookup(name, f.Name); !ok {
				missing = append(missing, FieldKey{name, f.Name})
			}
		}
	}
	return missing
}

func read[T any](fn func(T) any) ScalarFunc {
	return func(source any) (any, error) {
		v, ok := source.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("expected %T parent, got %T", zero, source)
		}
		return fn(v), nil
	}
}

func key[T any](fn func(T) any) KeyFunc {
	return func(source any) (any, bool) {
		v, ok := source.(T)
		if !ok {
			return nil, false
		}
		return fn(v), true
	}
}

// RequestContext is the per-request state handed to every resolver.
type RequestContext struct {
	Store   repository.Store
	Loaders *loader.Loaders
	Plan    UsersPlan
}

// fieldRuntime dispatches executor field requests through the registry.
// Loader and root fields are awaited inside the operation's resolver
// middleware, so field interceptors observe them like gqlgen resolvers.
type fieldRuntime struct {
	registry   *Registry
	rc         *RequestContext
	intro      *introspection
	middleware gqlgen.FieldMiddleware
	recover    gqlgen.RecoverFunc
}

func (rt *fieldRuntime) ResolveField(ctx context.Context, objectType string, field *ast.Field, source any, args map[string]any) executor.Resolution {
	name := field.Name
	if rt.intro.handles(objectType, name) {
		return rt.intro.resolve(objectType, name, source, args)
	}

	fr, ok := rt.registry.Lookup(objectType, name)
	if !ok {
		return executor.Failed(fmt.Errorf("no resolver registered for %s.%s", objectType, name))
	}

	switch fr.Strategy {
	case StrategyScalar:
		v, err := fr.Read(source)
		return executor.Resolution{Value: v, Err: err}
	case StrategyLoader:
		k, ok := fr.Key(source)
		if !ok {
			return executor.Done(nil)
		}
		d, err := rt.rc.Loaders.ByID(fr.Loader)
		if err != nil {
			return executor.Failed(err)
		}
		return rt.intercept(ctx, objectType, field, args, executor.Deferred(d.LoadAny(ctx, k)))
	case StrategyRoot:
		return rt.intercept(ctx, objectType, field, args, fr.Resolve(ctx, rt.rc, args))
	}
	return executor.Failed(fmt.Errorf("unknown strategy %s for %s.%s", fr.Strategy, objectType, name))
}

// Dispatch sends the loads queued by the current pass.
func (rt *fieldRuntime) Dispatch(ctx context.Context) {
	rt.rc.Loaders.Dispatch(ctx)
}

// intercept wraps the await of a pending resolution in the resolver
// middleware and hands recovered panics to the recover func.
func (rt *fieldRuntime) intercept(ctx context.Context, objectType string, field *ast.Field, args map[string]any, res executor.Resolution) executor.Resolution {
	if res.Pending == nil {
		return res
	}
	pending := res.Pending
	await := func(context.Context) (any, error) {
		v, err := pending()
		var p *panicError
		if rt.recover != nil && errors.As(err, &p) {
			return nil, rt.recover(ctx, p)
		}
		return v, err
	}
	if rt.middleware == nil {
		return executor.Deferred(func() (any, error) { return await(ctx) })
	}

	fctx := gqlgen.WithFieldContext(ctx, &gqlgen.FieldContext{
		Object:     objectType,
		Field:      gqlgen.CollectedField{Field: field, Selections: field.SelectionSet},
		Args:       args,
		IsResolver: true,
	})
	return executor.Deferred(func() (any, error) {
		return rt.middleware(fctx, await)
	})
}

// panicError hides a recovered panic from clients while keeping it for logs.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return "internal resolver error"
}

// async runs fn on its own goroutine so root fields fetch concurrently.
// A panic inside fn fails the field instead of the process.
func async(fn func() (any, error)) executor.Resolution {
	type outcome struct {
		value any
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: &panicError{value: r, stack: debug.Stack()}}
			}
		}()
		v, err := fn()
		ch <- outcome{value: v, err: err}
	}()

	var (
		once sync.Once
		res  outcome
	)
	return executor.Deferred(func() (any, error) {
		once.Do(func() { res = <-ch })
		return res.value, res.err
	})
}
