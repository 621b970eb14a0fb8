package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/rpattn/socialql/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store         *MemoryStore
	ann, bob, cid domain.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s := NewMemoryStore()
	for _, mt := range DefaultMemberTypes {
		require.NoError(t, s.AddMemberType(mt))
	}
	f := fixture{
		store: s,
		ann:   domain.NewUser("Ann", 1),
		bob:   domain.NewUser("Bob", 2),
		cid:   domain.NewUser("Cid", 3),
	}
	for _, u := range []domain.User{f.ann, f.bob, f.cid} {
		require.NoError(t, s.AddUser(u))
	}
	require.NoError(t, s.Subscribe(f.bob.ID, f.ann.ID))
	require.NoError(t, s.Subscribe(f.cid.ID, f.ann.ID))
	require.NoError(t, s.Subscribe(f.ann.ID, f.cid.ID))
	return f
}

func TestMemoryStore_FindManyPreservesInsertionOrder(t *testing.T) {
	f := newFixture(t)

	users, err := FindManyOf[*domain.User](context.Background(), f.store, FindOptions{})
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, []string{"Ann", "Bob", "Cid"}, []string{users[0].Name, users[1].Name, users[2].Name})
	assert.Nil(t, users[0].UserSubscribedTo, "edges must not be joined unless requested")
}

func TestMemoryStore_IncludeEdges(t *testing.T) {
	f := newFixture(t)

	users, err := FindManyOf[*domain.User](context.Background(), f.store, FindOptions{
		Include: Include{UserSubscribedTo: true, SubscribedToUser: true},
	})
	require.NoError(t, err)

	ann := users[0]
	assert.Equal(t, []domain.SubscriptionEdge{{SubscriberID: f.ann.ID, AuthorID: f.cid.ID}}, ann.UserSubscribedTo)
	assert.Len(t, ann.SubscribedToUser, 2)

	bob := users[1]
	assert.Empty(t, bob.SubscribedToUser)
	assert.NotNil(t, bob.SubscribedToUser)
}

func TestMemoryStore_SubscriptionFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	authors, err := FindManyOf[*domain.User](ctx, f.store, FindOptions{
		Filter: &Filter{Field: FilterSubscribedBy, In: []string{f.bob.ID.String(), f.ann.ID.String()}},
	})
	require.NoError(t, err)
	require.Len(t, authors, 2)
	assert.Equal(t, f.ann.ID, authors[0].ID)
	assert.Equal(t, f.cid.ID, authors[1].ID)

	followers, err := FindManyOf[*domain.User](ctx, f.store, FindOptions{
		Filter: &Filter{Field: FilterSubscriberOf, In: []string{f.ann.ID.String()}},
	})
	require.NoError(t, err)
	require.Len(t, followers, 2)
	assert.Equal(t, f.bob.ID, followers[0].ID)
	assert.Equal(t, f.cid.ID, followers[1].ID)

	edges, err := FindManyOf[*domain.SubscriptionEdge](ctx, f.store, FindOptions{
		Filter: &Filter{Field: FilterAuthorID, In: []string{f.cid.ID.String()}},
	})
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestMemoryStore_FindByIDNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.FindByID(context.Background(), domain.KindUser, uuid.NewString())
	assert.True(t, errors.Is(err, ErrNotFound))

	mt, err := FindByIDOf[*domain.MemberType](context.Background(), f.store, "basic")
	require.NoError(t, err)
	assert.Equal(t, 20, mt.PostsLimitPerMonth)
}

func TestMemoryStore_EnforcesReferences(t *testing.T) {
	f := newFixture(t)
	ghost := uuid.New()

	assert.Error(t, f.store.AddPost(domain.NewPost(ghost, "t", "c")))
	assert.Error(t, f.store.Subscribe(ghost, f.ann.ID))
	assert.Error(t, f.store.AddProfile(domain.NewProfile(ghost, domain.MemberTypeBasic, true, 1990)))
	assert.Error(t, f.store.AddProfile(domain.NewProfile(f.ann.ID, "gold", true, 1990)))
	assert.Error(t, f.store.AddMemberType(domain.MemberType{ID: "gold"}))

	require.NoError(t, f.store.AddProfile(domain.NewProfile(f.ann.ID, domain.MemberTypeBasic, true, 1990)))
	assert.Error(t, f.store.AddProfile(domain.NewProfile(f.ann.ID, domain.MemberTypeBasic, true, 1991)), "a user has at most one profile")
}

func TestMemoryStore_UnsupportedFilter(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.FindMany(context.Background(), domain.KindPost, FindOptions{
		Filter: &Filter{Field: FilterUserID, In: []string{f.ann.ID.String()}},
	})
	assert.Error(t, err)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := FindByIDOf[*domain.User](ctx, f.store, f.ann.ID.String())
	require.NoError(t, err)
	u.Name = "changed"

	again, err := FindByIDOf[*domain.User](ctx, f.store, f.ann.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Ann", again.Name)
}

func TestSeedDemo(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, SeedDemo(s))

	posts, err := FindManyOf[*domain.Post](context.Background(), s, FindOptions{})
	require.NoError(t, err)
	assert.Len(t, posts, 3)
}
