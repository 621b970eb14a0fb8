package loader

import (
	"context"
	"fmt"

	"github.com/rpattn/socialql/internal/domain"
	"github.com/rpattn/socialql/internal/repository"

	"github.com/google/uuid"
)

// ID names one of the per-request loaders.
type ID int

const (
	MemberTypeByID ID = iota
	UserByID
	PostsByAuthor
	ProfileByUser
	SubscribedTo
	Subscribers
)

func (id ID) String() string {
	switch id {
	case MemberTypeByID:
		return "memberTypeById"
	case UserByID:
		return "userById"
	case PostsByAuthor:
		return "postsByAuthor"
	case ProfileByUser:
		return "profileByUser"
	case SubscribedTo:
		return "subscribedTo"
	case Subscribers:
		return "subscribers"
	}
	return fmt.Sprintf("loader(%d)", int(id))
}

// AnyLoader loads by an untyped key; every Loader implements it.
type AnyLoader interface {
	Name() string
	LoadAny(ctx context.Context, key any) func() (any, error)
	Dispatch(ctx context.Context)
}

// Loaders is the loader set owned by a single request.
type Loaders struct {
	MemberTypeByID *Loader[domain.MemberTypeID, *domain.MemberType]
	UserByID       *Loader[uuid.UUID, *domain.User]
	PostsByAuthor  *Loader[uuid.UUID, []*domain.Post]
	ProfileByUser  *Loader[uuid.UUID, *domain.Profile]
	// SubscribedTo maps a subscriber to the authors they follow.
	SubscribedTo *Loader[uuid.UUID, []*domain.User]
	// Subscribers maps an author to the users following them.
	Subscribers *Loader[uuid.UUID, []*domain.User]
}

// NewLoaders builds a fresh loader set reading from store
func NewLoaders(store repository.Store, opts Options) *Loaders {
	return &Loaders{
		MemberTypeByID: New(MemberTypeByID.String(), fetchMemberTypes(store), opts),
		UserByID:       New(UserByID.String(), fetchUsers(store), opts),
		PostsByAuthor:  New(PostsByAuthor.String(), fetchPostsByAuthor(store), opts),
		ProfileByUser:  New(ProfileByUser.String(), fetchProfilesByUser(store), opts),
		SubscribedTo:   New(SubscribedTo.String(), fetchSubscribedTo(store), opts),
		Subscribers:    New(Subscribers.String(), fetchSubscribers(store), opts),
	}
}

// Dispatch sends every key queued on any loader of the set.
func (l *Loaders) Dispatch(ctx context.Context) {
	for _, d := range l.all() {
		d.Dispatch(ctx)
	}
}

func (l *Loaders) all() []AnyLoader {
	return []AnyLoader{l.MemberTypeByID, l.UserByID, l.PostsByAuthor, l.ProfileByUser, l.SubscribedTo, l.Subscribers}
}

// ByID returns the loader registered under id.
func (l *Loaders) ByID(id ID) (AnyLoader, error) {
	switch id {
	case MemberTypeByID:
		return l.MemberTypeByID, nil
	case UserByID:
		return l.UserByID, nil
	case PostsByAuthor:
		return l.PostsByAuthor, nil
	case ProfileByUser:
		return l.ProfileByUser, nil
	case SubscribedTo:
		return l.SubscribedTo, nil
	case Subscribers:
		return l.Subscribers, nil
	}
	return nil, fmt.Errorf("unknown loader %s", id)
}

func keyStrings[K Key](keys []K) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

func fetchMemberTypes(store repository.Store) FetchFunc[domain.MemberTypeID, *domain.MemberType] {
	return func(ctx context.Context, keys []domain.MemberTypeID) (map[domain.MemberTypeID]*domain.MemberType, error) {
		rows, err := repository.FindManyOf[*domain.MemberType](ctx, store, repository.FindOptions{
			Filter: &repository.Filter{Field: repository.FilterID, In: keyStrings(keys)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load member types: %w", err)
		}
		out := make(map[domain.MemberTypeID]*domain.MemberType, len(rows))
		for _, mt := range rows {
			out[mt.ID] = mt
		}
		return out, nil
	}
}

func fetchUsers(store repository.Store) FetchFunc[uuid.UUID, *domain.User] {
	return func(ctx context.Context, keys []uuid.UUID) (map[uuid.UUID]*domain.User, error) {
		rows, err := repository.FindManyOf[*domain.User](ctx, store, repository.FindOptions{
			Filter: &repository.Filter{Field: repository.FilterID, In: keyStrings(keys)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load users: %w", err)
		}
		out := make(map[uuid.UUID]*domain.User, len(rows))
		for _, u := range rows {
			out[u.ID] = u
		}
		return out, nil
	}
}

func fetchPostsByAuthor(store repository.Store) FetchFunc[uuid.UUID, []*domain.Post] {
	return func(ctx context.Context, keys []uuid.UUID) (map[uuid.UUID][]*domain.Post, error) {
		rows, err := repository.FindManyOf[*domain.Post](ctx, store, repository.FindOptions{
			Filter: &repository.Filter{Field: repository.FilterAuthorID, In: keyStrings(keys)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load posts: %w", err)
		}
		out := make(map[uuid.UUID][]*domain.Post, len(keys))
		for _, k := range keys {
			out[k] = []*domain.Post{}
		}
		for _, p := range rows {
			out[p.AuthorID] = append(out[p.AuthorID], p)
		}
		return out, nil
	}
}

func fetchProfilesByUser(store repository.Store) FetchFunc[uuid.UUID, *domain.Profile] {
	return func(ctx context.Context, keys []uuid.UUID) (map[uuid.UUID]*domain.Profile, error) {
		rows, err := repository.FindManyOf[*domain.Profile](ctx, store, repository.FindOptions{
			Filter: &repository.Filter{Field: repository.FilterUserID, In: keyStrings(keys)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load profiles: %w", err)
		}
		out := make(map[uuid.UUID]*domain.Profile, len(rows))
		for _, p := range rows {
			out[p.UserID] = p
		}
		return out, nil
	}
}

// fetchSubscribedTo loads the authors followed by each subscriber key. The
// authors come back with their subscriber edges joined so they can be grouped
// without a second query.
func fetchSubscribedTo(store repository.Store) FetchFunc[uuid.UUID, []*domain.User] {
	return func(ctx context.Context, keys []uuid.UUID) (map[uuid.UUID][]*domain.User, error) {
		authors, err := repository.FindManyOf[*domain.User](ctx, store, repository.FindOptions{
			Filter:  &repository.Filter{Field: repository.FilterSubscribedBy, In: keyStrings(keys)},
			Include: repository.Include{SubscribedToUser: true},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load subscriptions: %w", err)
		}
		out := emptyGroups(keys)
		for _, author := range authors {
			for _, edge := range author.SubscribedToUser {
				if group, ok := out[edge.SubscriberID]; ok {
					out[edge.SubscriberID] = append(group, author)
				}
			}
		}
		return out, nil
	}
}

// fetchSubscribers loads the followers of each author key.
func fetchSubscribers(store repository.Store) FetchFunc[uuid.UUID, []*domain.User] {
	return func(ctx context.Context, keys []uuid.UUID) (map[uuid.UUID][]*domain.User, error) {
		followers, err := repository.FindManyOf[*domain.User](ctx, store, repository.FindOptions{
			Filter:  &repository.Filter{Field: repository.FilterSubscriberOf, In: keyStrings(keys)},
			Include: repository.Include{UserSubscribedTo: true},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load subscribers: %w", err)
		}
		out := emptyGroups(keys)
		for _, follower := range followers {
			for _, edge := range follower.UserSubscribedTo {
				if group, ok := out[edge.AuthorID]; ok {
					out[edge.AuthorID] = append(group, follower)
				}
			}
		}
		return out, nil
	}
}

func emptyGroups(keys []uuid.UUID) map[uuid.UUID][]*domain.User {
	out := make(map[uuid.UUID][]*domain.User, len(keys))
	for _, k := range keys {
		out[k] = []*domain.User{}
	}
	return out
}
