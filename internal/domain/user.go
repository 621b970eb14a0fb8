package domain

import "github.com/google/uuid"

// User is an account that can author posts and subscribe to other users.
//
// The subscription slices are only populated when the store was asked to
// include edge rows; otherwise they are nil.
type User struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Balance float64   `json:"balance"`

	// UserSubscribedTo holds edges where this user is the subscriber.
	UserSubscribedTo []SubscriptionEdge `json:"-"`
	// SubscribedToUser holds edges where this user is the author.
	SubscribedToUser []SubscriptionEdge `json:"-"`
}

// NewUser creates a user with a fresh identifier
func NewUser(name string, balance float64) User {
	return User{
		ID:      uuid.New(),
		Name:    name,
		Balance: balance,
	}
}

func (*User) Kind() Kind { return KindUser }

func (u *User) Key() string { return u.ID.String() }

// WithoutEdges returns a copy of the user with no included relation rows.
func (u User) WithoutEdges() User {
	u.UserSubscribedTo = nil
	u.SubscribedToUser = nil
	return u
}
