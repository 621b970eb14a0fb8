package graphql

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/socialql/internal/domain"
	"github.com/rpattn/socialql/internal/executor"
	"github.com/rpattn/socialql/internal/repository"

	"github.com/google/uuid"
)

// Query resolvers

func resolveMemberTypes(ctx context.Context, rc *RequestContext, _ map[string]any) executor.Resolution {
	return async(func() (any, error) {
		rows, err := repository.FindManyOf[*domain.MemberType](ctx, rc.Store, repository.FindOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to list member types: %w", err)
		}
		return rows, nil
	})
}

// resolveMemberType goes through the loader so repeated lookups of one tier
// share a fetch with Profile.memberType.
func resolveMemberType(ctx context.Context, rc *RequestContext, args map[string]any) executor.Resolution {
	raw, _ := args["id"].(string)
	id := domain.MemberTypeID(raw)
	if !id.Valid() {
		return executor.Done(nil)
	}
	return executor.Deferred(rc.Loaders.MemberTypeByID.LoadAny(ctx, id))
}

func resolvePosts(ctx context.Context, rc *RequestContext, _ map[string]any) executor.Resolution {
	return async(func() (any, error) {
		rows, err := repository.FindManyOf[*domain.Post](ctx, rc.Store, repository.FindOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to list posts: %w", err)
		}
		return rows, nil
	})
}

func resolvePost(ctx context.Context, rc *RequestContext, args map[string]any) executor.Resolution {
	id, ok := uuidArg(args)
	if !ok {
		return executor.Done(nil)
	}
	return async(func() (any, error) {
		post, err := repository.FindByIDOf[*domain.Post](ctx, rc.Store, id.String())
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get post: %w", err)
		}
		return post, nil
	})
}

// resolveUsers fetches every user in one call, joining the subscription edges
// the plan asked for, and primes the loaders from that single result set.
func resolveUsers(ctx context.Context, rc *RequestContext, _ map[string]any) executor.Resolution {
	return async(func() (any, error) {
		users, err := repository.FindManyOf[*domain.User](ctx, rc.Store, repository.FindOptions{
			Include: rc.Plan.Include(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		primeUsers(ctx, rc, users)
		return users, nil
	})
}

func primeUsers(ctx context.Context, rc *RequestContext, users []*domain.User) {
	byID := make(map[uuid.UUID]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
		rc.Loaders.UserByID.Prime(ctx, u.ID, u)
	}

	related := func(edges []domain.SubscriptionEdge, pick func(domain.SubscriptionEdge) uuid.UUID) []*domain.User {
		out := make([]*domain.User, 0, len(edges))
		for _, e := range edges {
			if u, ok := byID[pick(e)]; ok {
				out = append(out, u)
			}
		}
		return out
	}

	for _, u := range users {
		if rc.Plan.IncludeSubscriptions {
			authors := related(u.UserSubscribedTo, func(e domain.SubscriptionEdge) uuid.UUID { return e.AuthorID })
			rc.Loaders.SubscribedTo.Prime(ctx, u.ID, authors)
		}
		if rc.Plan.IncludeFollowers {
			followers := related(u.SubscribedToUser, func(e domain.SubscriptionEdge) uuid.UUID { return e.SubscriberID })
			rc.Loaders.Subscribers.Prime(ctx, u.ID, followers)
		}
	}
}

func resolveUser(ctx context.Context, rc *RequestContext, args map[string]any) executor.Resolution {
	id, ok := uuidArg(args)
	if !ok {
		return executor.Done(nil)
	}
	return executor.Deferred(rc.Loaders.UserByID.LoadAny(ctx, id))
}

func resolveProfiles(ctx context.Context, rc *RequestContext, _ map[string]any) executor.Resolution {
	return async(func() (any, error) {
		rows, err := repository.FindManyOf[*domain.Profile](ctx, rc.Store, repository.FindOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to list profiles: %w", err)
		}
		return rows, nil
	})
}

func resolveProfile(ctx context.Context, rc *RequestContext, args map[string]any) executor.Resolution {
	id, ok := uuidArg(args)
	if !ok {
		return executor.Done(nil)
	}
	return async(func() (any, error) {
		profile, err := repository.FindByIDOf[*domain.Profile](ctx, rc.Store, id.String())
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}
		return profile, nil
	})
}

// uuidArg parses the id argument. A malformed id cannot match any row, so
// callers treat it like a missing one.
func uuidArg(args map[string]any) (uuid.UUID, bool) {
	raw, _ := args["id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
