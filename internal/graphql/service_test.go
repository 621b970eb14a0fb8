package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rpattn/socialql/internal/domain"
	"github.com/rpattn/socialql/internal/executor"
	"github.com/rpattn/socialql/internal/loader"
	"github.com/rpattn/socialql/internal/repository"
	"github.com/rpattn/socialql/internal/repository/repositorytest"

	gqlgen "github.com/99designs/gqlgen/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fixture struct {
	store         *repositorytest.Recorder
	svc           *Service
	ann, bob, cid domain.User
	annProfile    domain.Profile
}

// newFixture seeds three users holding 2, 0 and 1 posts.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := repository.NewMemoryStore()
	require.NoError(t, mem.AddMemberType(repository.DefaultMemberTypes[0]))

	f := &fixture{
		ann: domain.NewUser("Ann", 10.5),
		bob: domain.NewUser("Bob", -2),
		cid: domain.NewUser("Cid", 0),
	}
	for _, u := range []domain.User{f.ann, f.bob, f.cid} {
		require.NoError(t, mem.AddUser(u))
	}
	require.NoError(t, mem.AddPost(domain.NewPost(f.ann.ID, "first", "a1")))
	require.NoError(t, mem.AddPost(domain.NewPost(f.ann.ID, "second", "a2")))
	require.NoError(t, mem.AddPost(domain.NewPost(f.cid.ID, "only", "c1")))

	f.annProfile = domain.NewProfile(f.ann.ID, domain.MemberTypeBasic, false, 1990)
	require.NoError(t, mem.AddProfile(f.annProfile))

	require.NoError(t, mem.Subscribe(f.bob.ID, f.ann.ID))
	require.NoError(t, mem.Subscribe(f.cid.ID, f.ann.ID))
	require.NoError(t, mem.Subscribe(f.ann.ID, f.cid.ID))

	f.store = repositorytest.NewRecorder(mem)
	svc, err := NewService(f.store, Config{Loader: loader.DefaultOptions()})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) run(t *testing.T, query string, vars map[string]any) (*gqlgen.Response, string) {
	t.Helper()
	res := f.svc.Execute(context.Background(), Request{Query: query, Variables: vars})
	out, err := json.Marshal(res)
	require.NoError(t, err)
	return res, string(out)
}

func TestService_UsersWithPostsBatchesPerLevel(t *testing.T) {
	f := newFixture(t)

	res, out := f.run(t, `{ users { id posts { title } } }`, nil)

	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"data":{"users":[
		{"id":"`+f.ann.ID.String()+`","posts":[{"title":"first"},{"title":"second"}]},
		{"id":"`+f.bob.ID.String()+`","posts":[]},
		{"id":"`+f.cid.ID.String()+`","posts":[{"title":"only"}]}
	]}}`, out)

	users := f.store.CallsFor(domain.KindUser)
	require.Len(t, users, 1)
	assert.False(t, users[0].Opts.Include.Any())

	posts := f.store.CallsFor(domain.KindPost)
	require.Len(t, posts, 1)
	assert.Equal(t, repository.FilterAuthorID, posts[0].Opts.Filter.Field)
	assert.ElementsMatch(t, []string{f.ann.ID.String(), f.bob.ID.String(), f.cid.ID.String()}, posts[0].Opts.Filter.In)
}

func TestService_PrefetchJoinsEdgesInOneCall(t *testing.T) {
	f := newFixture(t)

	res, out := f.run(t, `{
		users {
			name
			userSubscribedTo { name }
			subscribedToUser { name userSubscribedTo { name } }
		}
	}`, nil)

	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"data":{"users":[
		{"name":"Ann","userSubscribedTo":[{"name":"Cid"}],"subscribedToUser":[
			{"name":"Bob","userSubscribedTo":[{"name":"Ann"}]},
			{"name":"Cid","userSubscribedTo":[{"name":"Ann"}]}
		]},
		{"name":"Bob","userSubscribedTo":[{"name":"Ann"}],"subscribedToUser":[]},
		{"name":"Cid","userSubscribedTo":[{"name":"Ann"}],"subscribedToUser":[{"name":"Ann","userSubscribedTo":[{"name":"Cid"}]}]}
	]}}`, out)

	calls := f.store.Calls()
	require.Len(t, calls, 1, "edges must come from the users fetch")
	assert.Equal(t, repository.Include{UserSubscribedTo: true, SubscribedToUser: true}, calls[0].Opts.Include)
}

func TestService_PrefetchOnlyRequestedDirection(t *testing.T) {
	f := newFixture(t)

	res, _ := f.run(t, `{ users { subscribedToUser { id } } }`, nil)

	require.Empty(t, res.Errors)
	calls := f.store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, repository.Include{SubscribedToUser: true}, calls[0].Opts.Include)
}

func TestService_NoEdgeFetchWithoutRelationFields(t *testing.T) {
	f := newFixture(t)

	res, _ := f.run(t, `{ users { id name balance } }`, nil)

	require.Empty(t, res.Errors)
	calls := f.store.Calls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Opts.Include.Any())
	assert.Empty(t, f.store.CallsFor(domain.KindSubscription))
}

func TestService_PreservesQueryFieldOrder(t *testing.T) {
	f := newFixture(t)

	_, out := f.run(t, `{ users { name id } memberTypes { postsLimitPerMonth id } }`, nil)

	assert.True(t, strings.HasPrefix(out, `{"data":{"users":[{"name":"Ann","id":"`), out)
	assert.Contains(t, out, `"memberTypes":[{"postsLimitPerMonth":20,"id":"basic"}]`)
}

func TestService_MissingMemberTypeIsNull(t *testing.T) {
	f := newFixture(t)

	res, out := f.run(t, `{ memberType(id: business) { id discount } }`, nil)

	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"data":{"memberType":null}}`, out)
}

func TestService_UnknownMemberTypeIdFailsValidation(t *testing.T) {
	f := newFixture(t)

	res, out := f.run(t, `{ memberType(id: "nonexistent-tier") { id } }`, nil)

	require.NotEmpty(t, res.Errors)
	assert.Nil(t, res.Data)
	assert.Contains(t, out, `"data":null`)
	assert.Empty(t, f.store.Calls())
}

func TestService_SingularLookups(t *testing.T) {
	f := newFixture(t)

	res, out := f.run(t, `query($user: UUID!, $profile: UUID!, $missing: UUID!) {
		user(id: $user) { name profile { yearOfBirth memberType { discount } } }
		profile(id: $profile) { isMale memberTypeId user { name } }
		post(id: $missing) { title }
		ghost: user(id: $missing) { name }
	}`, map[string]any{
		"user":    f.ann.ID.String(),
		"profile": f.annProfile.ID.String(),
		"missing": "00000000-0000-0000-0000-000000000001",
	})

	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"data":{
		"user":{"name":"Ann","profile":{"yearOfBirth":1990,"memberType":{"discount":2.3}}},
		"profile":{"isMale":false,"memberTypeId":"basic","user":{"name":"Ann"}},
		"post":null,
		"ghost":null
	}}`, out)
}

func TestService_AliasesShareLoads(t *testing.T) {
	f := newFixture(t)
	query := `query($id: UUID!) {
		a: user(id: $id) { name posts { title author { name } } }
		b: user(id: $id) { name posts { title author { name } } }
	}`

	res, _ := f.run(t, query, map[string]any{"id": f.ann.ID.String()})

	require.Empty(t, res.Errors)
	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(res.Data, &data))
	assert.Equal(t, string(data["a"]), string(data["b"]))

	assert.Len(t, f.store.CallsFor(domain.KindUser), 1, "authors are served from the user loader cache")
	assert.Len(t, f.store.CallsFor(domain.KindPost), 1)
}

func TestService_FetchErrorKeepsSiblings(t *testing.T) {
	f := newFixture(t)
	f.store.FailKind(domain.KindPost, errors.New("posts table unavailable"))

	res, out := f.run(t, `{ users { name posts { title } } memberTypes { id } }`, nil)

	require.Len(t, res.Errors, 3)
	for i, err := range res.Errors {
		assert.Contains(t, err.Message, "posts table unavailable")
		assert.Equal(t, ast.Path{ast.PathName("users"), ast.PathIndex(i), ast.PathName("posts")}, err.Path)
	}
	assert.Contains(t, out, `{"name":"Ann","posts":null}`)
	assert.Contains(t, out, `"memberTypes":[{"id":"basic"}]`)
}

func TestService_RootFetchErrorNullsOnlyThatField(t *testing.T) {
	f := newFixture(t)
	f.store.FailKind(domain.KindProfile, errors.New("boom"))

	res, out := f.run(t, `{ profiles { id } users { name } }`, nil)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, ast.Path{ast.PathName("profiles")}, res.Errors[0].Path)
	assert.Contains(t, out, `"profiles":null`)
	assert.Contains(t, out, `"users":[{"name":"Ann"},{"name":"Bob"},{"name":"Cid"}]`)
}

func TestService_DepthGuardRejectsBeforeExecution(t *testing.T) {
	f := newFixture(t)

	res, out := f.run(t, `query Deep {
		users { posts { author { posts { author { posts { title } } } } } }
	}`, nil)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "'Deep' exceeds maximum operation depth of 5", res.Errors[0].Message)
	assert.JSONEq(t, `{"data":null,"errors":[{
		"message":"'Deep' exceeds maximum operation depth of 5",
		"locations":[{"line":2,"column":53}],
		"extensions":{"code":"GRAPHQL_VALIDATION_FAILED"}
	}]}`, out)
	assert.Empty(t, f.store.Calls())
}

func TestService_DepthAtCeilingExecutes(t *testing.T) {
	f := newFixture(t)

	res, _ := f.run(t, `{ users { posts { author { posts { author { name } } } } } }`, nil)

	require.Empty(t, res.Errors)
	assert.NotNil(t, res.Data)
}

func TestService_DepthCeilingIsConfigurable(t *testing.T) {
	f := newFixture(t)
	svc, err := NewService(f.store, Config{MaxDepth: 1})
	require.NoError(t, err)

	res := svc.Execute(context.Background(), Request{Query: `{ users { posts { title } } }`})

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "operation exceeds maximum depth of 1", res.Errors[0].Message)
	assert.Nil(t, res.Data)
}

func TestService_MalformedQuery(t *testing.T) {
	f := newFixture(t)

	res, out := f.run(t, `{ users { `, nil)

	require.NotEmpty(t, res.Errors)
	assert.Contains(t, out, `"data":null`)
}

func TestService_OperationSelection(t *testing.T) {
	f := newFixture(t)
	query := `query Names { users { name } } query Tiers { memberTypes { id } }`

	res := f.svc.Execute(context.Background(), Request{Query: query, OperationName: "Tiers"})
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"memberTypes":[{"id":"basic"}]}`, string(res.Data))

	res = f.svc.Execute(context.Background(), Request{Query: query})
	require.Len(t, res.Errors, 1)
	assert.Nil(t, res.Data)
}

func TestService_BadVariables(t *testing.T) {
	f := newFixture(t)

	res := f.svc.Execute(context.Background(), Request{
		Query:     `query($id: UUID!) { user(id: $id) { name } }`,
		Variables: map[string]any{},
	})

	require.Len(t, res.Errors, 1)
	assert.Nil(t, res.Data)
}

func TestService_Introspection(t *testing.T) {
	f := newFixture(t)

	res := f.svc.Execute(context.Background(), Request{Query: `{
		__schema { queryType { name } }
		__type(name: "MemberTypeId") { kind enumValues { name } }
		users { __typename }
	}`})

	require.Empty(t, res.Errors)
	data := decode(t, res.Data)
	assert.Equal(t, map[string]any{"queryType": map[string]any{"name": "Query"}}, data["__schema"])
	assert.Equal(t, map[string]any{
		"kind":       "ENUM",
		"enumValues": []any{map[string]any{"name": "basic"}, map[string]any{"name": "business"}},
	}, data["__type"])
	assert.Equal(t, []any{
		map[string]any{"__typename": "User"},
		map[string]any{"__typename": "User"},
		map[string]any{"__typename": "User"},
	}, data["users"])
}

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestService_IntrospectionCanBeDisabled(t *testing.T) {
	f := newFixture(t)
	svc, err := NewService(f.store, Config{DisableIntrospection: true})
	require.NoError(t, err)

	res := svc.Execute(context.Background(), Request{Query: `{ __type(name: "User") { name } users { name } }`})

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "introspection disabled", res.Errors[0].Message)
	assert.Equal(t, ast.Path{ast.PathName("__type")}, res.Errors[0].Path)
	data := decode(t, res.Data)
	assert.Nil(t, data["__type"])
	assert.Len(t, data["users"], 3)

	res = svc.Execute(context.Background(), Request{Query: `{ __schema { queryType { name } } }`})
	require.Len(t, res.Errors, 1)
	assert.Nil(t, res.Data)
}

func TestService_ResolverPanicIsRecoveredAndLogged(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zap.ErrorLevel)
	svc, err := NewService(f.store, Config{Logger: zap.New(core)})
	require.NoError(t, err)
	svc.registry.root("memberTypes", func(context.Context, *RequestContext, map[string]any) executor.Resolution {
		return async(func() (any, error) { panic("tier table corrupt") })
	})

	res := svc.Execute(context.Background(), Request{Query: `{ memberTypes { id } users { name } }`})

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "internal server error", res.Errors[0].Message)
	assert.Equal(t, ast.Path{ast.PathName("memberTypes")}, res.Errors[0].Path)
	data := decode(t, res.Data)
	assert.Nil(t, data["memberTypes"])
	assert.Len(t, data["users"], 3)

	entries := logs.FilterMessage("resolver panicked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "tier table corrupt", entries[0].ContextMap()["panic"])
}

func TestService_ResolverLoggerSeesDeferredFields(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zap.DebugLevel)
	svc, err := NewService(f.store, Config{Logger: zap.New(core)})
	require.NoError(t, err)

	res := svc.Execute(context.Background(), Request{Query: `{ users { name posts { title } } }`})
	require.Empty(t, res.Errors)

	var fields []string
	for _, e := range logs.FilterMessage("resolver").All() {
		fields = append(fields, e.ContextMap()["field"].(string))
	}
	assert.Equal(t, []string{"Query.users", "User.posts", "User.posts", "User.posts"}, fields)
}
