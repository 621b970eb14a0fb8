package domain

// Kind names one of the entity collections exposed by the store.
type Kind string

const (
	KindMemberType   Kind = "MemberType"
	KindUser         Kind = "User"
	KindPost         Kind = "Post"
	KindProfile      Kind = "Profile"
	KindSubscription Kind = "SubscriptionEdge"
)

// Entity is implemented by every record the store hands out.
type Entity interface {
	Kind() Kind
	Key() string
}
