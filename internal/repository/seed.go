package repository

import (
	"fmt"

	"github.com/rpattn/socialql/internal/domain"
)

// DefaultMemberTypes are the tiers every deployment starts with.
var DefaultMemberTypes = []domain.MemberType{
	{ID: domain.MemberTypeBasic, Discount: 2.3, PostsLimitPerMonth: 20},
	{ID: domain.MemberTypeBusiness, Discount: 7.7, PostsLimitPerMonth: 100},
}

// SeedDemo fills s with the member tiers and a handful of users, posts,
// profiles and subscriptions.
func SeedDemo(s *MemoryStore) error {
	for _, mt := range DefaultMemberTypes {
		if err := s.AddMemberType(mt); err != nil {
			return fmt.Errorf("failed to seed member type: %w", err)
		}
	}

	ann := domain.NewUser("Ann", 120.5)
	bob := domain.NewUser("Bob", -3)
	cid := domain.NewUser("Cid", 0)
	for _, u := range []domain.User{ann, bob, cid} {
		if err := s.AddUser(u); err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
	}

	posts := []domain.Post{
		domain.NewPost(ann.ID, "Hello", "First post"),
		domain.NewPost(ann.ID, "Again", "Second post"),
		domain.NewPost(cid.ID, "Notes", "Cid's only post"),
	}
	for _, p := range posts {
		if err := s.AddPost(p); err != nil {
			return fmt.Errorf("failed to seed post: %w", err)
		}
	}

	profiles := []domain.Profile{
		domain.NewProfile(ann.ID, domain.MemberTypeBusiness, false, 1990),
		domain.NewProfile(bob.ID, domain.MemberTypeBasic, true, 1985),
	}
	for _, p := range profiles {
		if err := s.AddProfile(p); err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
	}

	edges := [][2]domain.User{{bob, ann}, {cid, ann}, {ann, cid}}
	for _, e := range edges {
		if err := s.Subscribe(e[0].ID, e[1].ID); err != nil {
			return fmt.Errorf("failed to seed subscription: %w", err)
		}
	}
	return nil
}
