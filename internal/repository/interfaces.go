package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/socialql/internal/domain"
)

// ErrNotFound is returned by FindByID when no row matches.
var ErrNotFound = errors.New("record not found")

// FilterField names the column a Filter restricts.
type FilterField string

const (
	// FilterID matches the primary key of the requested kind.
	FilterID FilterField = "id"
	// FilterAuthorID matches Post.authorId or SubscriptionEdge.authorId.
	FilterAuthorID FilterField = "authorId"
	// FilterSubscriberID matches SubscriptionEdge.subscriberId.
	FilterSubscriberID FilterField = "subscriberId"
	// FilterUserID matches Profile.userId.
	FilterUserID FilterField = "userId"
	// FilterSubscribedBy matches users that have one of the given ids as a subscriber.
	FilterSubscribedBy FilterField = "subscribedToUser.subscriberId"
	// FilterSubscriberOf matches users subscribed to one of the given ids.
	FilterSubscriberOf FilterField = "userSubscribedTo.authorId"
)

// Filter restricts FindMany to rows whose Field is one of In.
type Filter struct {
	Field FilterField
	In    []string
}

// Include asks for subscription edge rows to be joined into returned users.
type Include struct {
	UserSubscribedTo bool
	SubscribedToUser bool
}

// Any reports whether any relation was requested.
func (i Include) Any() bool {
	return i.UserSubscribedTo || i.SubscribedToUser
}

// FindOptions narrows a FindMany call
type FindOptions struct {
	Filter  *Filter
	Include Include
}

// Store is the read-only persistence boundary the resolvers depend on.
// Implementations must be safe for concurrent use.
type Store interface {
	FindByID(ctx context.Context, kind domain.Kind, id string) (domain.Entity, error)
	FindMany(ctx context.Context, kind domain.Kind, opts FindOptions) ([]domain.Entity, error)
}

// Pinger is implemented by stores backed by a remote database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FindManyOf runs FindMany for the kind of T and narrows the rows to T.
func FindManyOf[T domain.Entity](ctx context.Context, s Store, opts FindOptions) ([]T, error) {
	var zero T
	rows, err := s.FindMany(ctx, zero.Kind(), opts)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		typed, ok := row.(T)
		if !ok {
			return nil, fmt.Errorf("store returned %T for kind %s", row, zero.Kind())
		}
		out = append(out, typed)
	}
	return out, nil
}

// FindByIDOf runs FindByID for the kind of T.
func FindByIDOf[T domain.Entity](ctx context.Context, s Store, id string) (T, error) {
	var zero T
	row, err := s.FindByID(ctx, zero.Kind(), id)
	if err != nil {
		return zero, err
	}
	typed, ok := row.(T)
	if !ok {
		return zero, fmt.Errorf("store returned %T for kind %s", row, zero.Kind())
	}
	return typed, nil
}

func unsupportedFilter(kind domain.Kind, f *Filter) error {
	return fmt.Errorf("filter %q is not supported for %s", f.Field, kind)
}
