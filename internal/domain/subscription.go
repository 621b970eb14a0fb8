package domain

import "github.com/google/uuid"

// SubscriptionEdge is a directed relation row: SubscriberID follows AuthorID.
// It has no identity of its own.
type SubscriptionEdge struct {
	SubscriberID uuid.UUID `json:"subscriber_id"`
	AuthorID     uuid.UUID `json:"author_id"`
}

func (*SubscriptionEdge) Kind() Kind { return KindSubscription }

func (e *SubscriptionEdge) Key() string {
	return e.SubscriberID.String() + ":" + e.AuthorID.String()
}
