package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/rpattn/socialql/internal/domain"

	"github.com/google/uuid"
)

// table keeps rows in insertion order with a key index.
type table[T any] struct {
	order []string
	rows  map[string]T
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) put(key string, row T) {
	if _, exists := t.rows[key]; !exists {
		t.order = append(t.order, key)
	}
	t.rows[key] = row
}

func (t *table[T]) get(key string) (T, bool) {
	row, ok := t.rows[key]
	return row, ok
}

func (t *table[T]) each(fn func(T)) {
	for _, key := range t.order {
		fn(t.rows[key])
	}
}

// MemoryStore is an in-process Store. Writes enforce the referential
// invariants of the schema; reads return copies.
type MemoryStore struct {
	mu          sync.RWMutex
	memberTypes *table[domain.MemberType]
	users       *table[domain.User]
	posts       *table[domain.Post]
	profiles    *table[domain.Profile]
	edges       *table[domain.SubscriptionEdge]
	// profileOwners maps a user to the id of their profile.
	profileOwners map[uuid.UUID]uuid.UUID
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		memberTypes: newTable[domain.MemberType](),
		users:       newTable[domain.User](),
		posts:       newTable[domain.Post](),
		profiles:    newTable[domain.Profile](),
		edges:       newTable[domain.SubscriptionEdge](),

		profileOwners: make(map[uuid.UUID]uuid.UUID),
	}
}

// AddMemberType stores a member tier
func (s *MemoryStore) AddMemberType(mt domain.MemberType) error {
	if !mt.ID.Valid() {
		return fmt.Errorf("unknown member type %q", mt.ID)
	}
	if mt.Discount < 0 || mt.PostsLimitPerMonth < 0 {
		return fmt.Errorf("member type %s has negative limits", mt.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberTypes.put(mt.ID.String(), mt)
	return nil
}

// AddUser stores a user
func (s *MemoryStore) AddUser(u domain.User) error {
	if u.ID == uuid.Nil {
		return fmt.Errorf("user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users.put(u.ID.String(), u.WithoutEdges())
	return nil
}

// AddPost stores a post; its author must exist
func (s *MemoryStore) AddPost(p domain.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users.get(p.AuthorID.String()); !ok {
		return fmt.Errorf("post %s references unknown author %s", p.ID, p.AuthorID)
	}
	s.posts.put(p.ID.String(), p)
	return nil
}

// AddProfile stores a profile; the user and member type must exist and the
// user must not already have a profile
func (s *MemoryStore) AddProfile(p domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users.get(p.UserID.String()); !ok {
		return fmt.Errorf("profile %s references unknown user %s", p.ID, p.UserID)
	}
	if _, ok := s.memberTypes.get(p.MemberTypeID.String()); !ok {
		return fmt.Errorf("profile %s references unknown member type %s", p.ID, p.MemberTypeID)
	}
	if owner, ok := s.profileOwners[p.UserID]; ok && owner != p.ID {
		return fmt.Errorf("user %s already has a profile", p.UserID)
	}
	s.profiles.put(p.ID.String(), p)
	s.profileOwners[p.UserID] = p.ID
	return nil
}

// Subscribe records that subscriberID follows authorID
func (s *MemoryStore) Subscribe(subscriberID, authorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range []uuid.UUID{subscriberID, authorID} {
		if _, ok := s.users.get(id.String()); !ok {
			return fmt.Errorf("subscription references unknown user %s", id)
		}
	}
	edge := domain.SubscriptionEdge{SubscriberID: subscriberID, AuthorID: authorID}
	s.edges.put(edge.Key(), edge)
	return nil
}

// FindByID returns the row of kind with the given primary key
func (s *MemoryStore) FindByID(ctx context.Context, kind domain.Kind, id string) (domain.Entity, error) {
	if kind == domain.KindSubscription {
		return nil, fmt.Errorf("%s has no primary key", kind)
	}
	rows, err := s.FindMany(ctx, kind, FindOptions{Filter: &Filter{Field: FilterID, In: []string{id}}})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return rows[0], nil
}

// FindMany returns every row of kind matching opts, in insertion order
func (s *MemoryStore) FindMany(ctx context.Context, kind domain.Kind, opts FindOptions) ([]domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var in map[string]struct{}
	if opts.Filter != nil {
		in = make(map[string]struct{}, len(opts.Filter.In))
		for _, v := range opts.Filter.In {
			in[v] = struct{}{}
		}
	}
	match := func(v string) bool {
		if in == nil {
			return true
		}
		_, ok := in[v]
		return ok
	}

	var out []domain.Entity
	switch kind {
	case domain.KindMemberType:
		if opts.Filter != nil && opts.Filter.Field != FilterID {
			return nil, unsupportedFilter(kind, opts.Filter)
		}
		s.memberTypes.each(func(mt domain.MemberType) {
			if match(mt.ID.String()) {
				out = append(out, &mt)
			}
		})
	case domain.KindUser:
		matchUser, err := s.userMatcher(opts.Filter, match)
		if err != nil {
			return nil, err
		}
		var bySubscriber, byAuthor map[uuid.UUID][]domain.SubscriptionEdge
		if opts.Include.UserSubscribedTo {
			bySubscriber = s.edgesBy(func(e domain.SubscriptionEdge) uuid.UUID { return e.SubscriberID })
		}
		if opts.Include.SubscribedToUser {
			byAuthor = s.edgesBy(func(e domain.SubscriptionEdge) uuid.UUID { return e.AuthorID })
		}
		s.users.each(func(u domain.User) {
			if !matchUser(u) {
				return
			}
			if bySubscriber != nil {
				u.UserSubscribedTo = nonNil(bySubscriber[u.ID])
			}
			if byAuthor != nil {
				u.SubscribedToUser = nonNil(byAuthor[u.ID])
			}
			out = append(out, &u)
		})
	case domain.KindPost:
		var field func(domain.Post) string
		switch {
		case opts.Filter == nil, opts.Filter.Field == FilterID:
			field = func(p domain.Post) string { return p.ID.String() }
		case opts.Filter.Field == FilterAuthorID:
			field = func(p domain.Post) string { return p.AuthorID.String() }
		default:
			return nil, unsupportedFilter(kind, opts.Filter)
		}
		s.posts.each(func(p domain.Post) {
			if match(field(p)) {
				out = append(out, &p)
			}
		})
	case domain.KindProfile:
		var field func(domain.Profile) string
		switch {
		case opts.Filter == nil, opts.Filter.Field == FilterID:
			field = func(p domain.Profile) string { return p.ID.String() }
		case opts.Filter.Field == FilterUserID:
			field = func(p domain.Profile) string { return p.UserID.String() }
		default:
			return nil, unsupportedFilter(kind, opts.Filter)
		}
		s.profiles.each(func(p domain.Profile) {
			if match(field(p)) {
				out = append(out, &p)
			}
		})
	case domain.KindSubscription:
		var field func(domain.SubscriptionEdge) string
		switch {
		case opts.Filter == nil:
			field = func(domain.SubscriptionEdge) string { return "" }
		case opts.Filter.Field == FilterSubscriberID:
			field = func(e domain.SubscriptionEdge) string { return e.SubscriberID.String() }
		case opts.Filter.Field == FilterAuthorID:
			field = func(e domain.SubscriptionEdge) string { return e.AuthorID.String() }
		default:
			return nil, unsupportedFilter(kind, opts.Filter)
		}
		s.edges.each(func(e domain.SubscriptionEdge) {
			if match(field(e)) {
				out = append(out, &e)
			}
		})
	default:
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	return out, nil
}

func (s *MemoryStore) userMatcher(f *Filter, match func(string) bool) (func(domain.User) bool, error) {
	if f == nil || f.Field == FilterID {
		return func(u domain.User) bool { return match(u.ID.String()) }, nil
	}
	// Users qualify through an edge whose other end matches the filter.
	var self, other func(domain.SubscriptionEdge) uuid.UUID
	switch f.Field {
	case FilterSubscribedBy:
		self = func(e domain.SubscriptionEdge) uuid.UUID { return e.AuthorID }
		other = func(e domain.SubscriptionEdge) uuid.UUID { return e.SubscriberID }
	case FilterSubscriberOf:
		self = func(e domain.SubscriptionEdge) uuid.UUID { return e.SubscriberID }
		other = func(e domain.SubscriptionEdge) uuid.UUID { return e.AuthorID }
	default:
		return nil, unsupportedFilter(domain.KindUser, f)
	}
	qualified := make(map[uuid.UUID]bool)
	s.edges.each(func(e domain.SubscriptionEdge) {
		if match(other(e).String()) {
			qualified[self(e)] = true
		}
	})
	return func(u domain.User) bool { return qualified[u.ID] }, nil
}

// edgesBy groups every edge by the id key picks, keeping insertion order.
func (s *MemoryStore) edgesBy(key func(domain.SubscriptionEdge) uuid.UUID) map[uuid.UUID][]domain.SubscriptionEdge {
	out := make(map[uuid.UUID][]domain.SubscriptionEdge)
	s.edges.each(func(e domain.SubscriptionEdge) {
		out[key(e)] = append(out[key(e)], e)
	})
	return out
}

func nonNil(edges []domain.SubscriptionEdge) []domain.SubscriptionEdge {
	if edges == nil {
		return []domain.SubscriptionEdge{}
	}
	return edges
}
