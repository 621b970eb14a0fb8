package graphql

import (
	"context"
	"testing"

	"github.com/rpattn/socialql/internal/domain"
	"github.com/rpattn/socialql/internal/loader"
	"github.com/rpattn/socialql/internal/repository"
	"github.com/rpattn/socialql/internal/repository/repositorytest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

func parse(t *testing.T, query string) *ast.QueryDocument {
	t.Helper()
	schema, err := LoadSchema()
	require.NoError(t, err)
	doc, errs := gqlparser.LoadQuery(schema, query)
	require.Empty(t, errs)
	return doc
}

func TestPlanUsers(t *testing.T) {
	tests := []struct {
		name  string
		query string
		vars  map[string]any
		want  UsersPlan
	}{
		{
			name:  "no relations",
			query: `{ users { id name } }`,
		},
		{
			name:  "both directions",
			query: `{ users { userSubscribedTo { id } subscribedToUser { id } } }`,
			want:  UsersPlan{IncludeSubscriptions: true, IncludeFollowers: true},
		},
		{
			name:  "aliased root and field",
			query: `{ everyone: users { following: userSubscribedTo { id } } }`,
			want:  UsersPlan{IncludeSubscriptions: true},
		},
		{
			name: "through fragments",
			query: `{ users { ...Followers ... on User { id } } }
				fragment Followers on User { subscribedToUser { id } }`,
			want: UsersPlan{IncludeFollowers: true},
		},
		{
			name:  "skipped field",
			query: `query($skip: Boolean!) { users { subscribedToUser @skip(if: $skip) { id } } }`,
			vars:  map[string]any{"skip": true},
		},
		{
			name:  "only direct children count",
			query: `{ users { posts { author { userSubscribedTo { id } } } } }`,
		},
		{
			name:  "other root fields ignored",
			query: `query($id: UUID!) { user(id: $id) { userSubscribedTo { id } } }`,
			vars:  map[string]any{"id": "x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, tt.query)
			got := PlanUsers(doc, doc.Operations[0], tt.vars)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDepth(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{`{ memberTypes { id } }`, 1},
		{`{ users { posts { author { name } } } }`, 3},
		{`{ users { ...F } } fragment F on User { posts { title } }`, 2},
		{`{ users { ... on User { profile { memberType { id } } } } }`, 3},
		{`{ __schema { types { fields { name } } } users { id } }`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			doc := parse(t, tt.query)
			assert.Equal(t, tt.want, Depth(doc, doc.Operations[0]))
		})
	}
}

func TestCheckDepth(t *testing.T) {
	doc := parse(t, `{ users { posts { author { name } } } }`)

	assert.Empty(t, CheckDepth(doc, 3))

	errs := CheckDepth(doc, 2)
	require.Len(t, errs, 1)
	assert.Equal(t, "operation exceeds maximum depth of 2", errs[0].Message)
	assert.Equal(t, "GRAPHQL_VALIDATION_FAILED", errs[0].Extensions["code"])
}

func TestCheckDepth_FragmentsDoNotHideNesting(t *testing.T) {
	doc := parse(t, `query Sneaky { users { ...A } }
		fragment A on User { posts { ...B } }
		fragment B on Post { author { name } }`)

	errs := CheckDepth(doc, 2)
	require.Len(t, errs, 1)
	assert.Equal(t, "'Sneaky' exceeds maximum operation depth of 2", errs[0].Message)
}

func TestRegistry_CoversSchema(t *testing.T) {
	schema, err := LoadSchema()
	require.NoError(t, err)

	assert.Empty(t, NewRegistry().Missing(schema))
}

func TestRegistry_RelationalFieldsDelegate(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		field FieldKey
		want  loader.ID
	}{
		{FieldKey{"Post", "author"}, loader.UserByID},
		{FieldKey{"Profile", "memberType"}, loader.MemberTypeByID},
		{FieldKey{"Profile", "user"}, loader.UserByID},
		{FieldKey{"User", "posts"}, loader.PostsByAuthor},
		{FieldKey{"User", "profile"}, loader.ProfileByUser},
		{FieldKey{"User", "userSubscribedTo"}, loader.SubscribedTo},
		{FieldKey{"User", "subscribedToUser"}, loader.Subscribers},
	}
	for _, tt := range tests {
		t.Run(tt.field.String(), func(t *testing.T) {
			fr, ok := r.Lookup(tt.field.Type, tt.field.Field)
			require.True(t, ok)
			assert.Equal(t, StrategyLoader, fr.Strategy)
			assert.Equal(t, tt.want, fr.Loader)
		})
	}

	fr, ok := r.Lookup("User", "name")
	require.True(t, ok)
	assert.Equal(t, StrategyScalar, fr.Strategy)
	v, err := fr.Read(&domain.User{Name: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", v)
}

func TestResolveMemberType_UnknownTierIsNull(t *testing.T) {
	mem := repository.NewMemoryStore()
	store := repositorytest.NewRecorder(mem)
	rc := &RequestContext{Store: store, Loaders: loader.NewLoaders(store, loader.DefaultOptions())}

	res := resolveMemberType(context.Background(), rc, map[string]any{"id": "nonexistent-tier"})

	require.NoError(t, res.Err)
	assert.Nil(t, res.Value)
	assert.Nil(t, res.Pending)
	assert.Empty(t, store.Calls())
}

func TestResolvePost_NotFoundIsNull(t *testing.T) {
	store := repository.NewMemoryStore()
	rc := &RequestContext{Store: store, Loaders: loader.NewLoaders(store, loader.DefaultOptions())}

	res := resolvePost(context.Background(), rc, map[string]any{"id": "00000000-0000-0000-0000-000000000009"})
	require.NotNil(t, res.Pending)

	v, err := res.Pending()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestAsync_RecoversPanics(t *testing.T) {
	res := async(func() (any, error) { panic("kaboom") })

	_, err := res.Pending()
	require.Error(t, err)
	assert.Equal(t, "internal resolver error", err.Error())
}
