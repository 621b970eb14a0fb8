package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMemberTypeID(t *testing.T) {
	id, err := ParseMemberTypeID("business")
	require.NoError(t, err)
	assert.Equal(t, MemberTypeBusiness, id)

	_, err = ParseMemberTypeID("nonexistent-tier")
	assert.Error(t, err)
}

func TestEntityKeys(t *testing.T) {
	u := NewUser("Ann", 10)
	p := NewPost(u.ID, "title", "content")
	edge := SubscriptionEdge{SubscriberID: u.ID, AuthorID: u.ID}

	assert.Equal(t, KindUser, u.Kind())
	assert.Equal(t, u.ID.String(), u.Key())
	assert.Equal(t, KindPost, p.Kind())
	assert.Equal(t, u.ID.String()+":"+u.ID.String(), edge.Key())

	var nilUser *User
	assert.Equal(t, KindUser, nilUser.Kind())
}

func TestUserWithoutEdges(t *testing.T) {
	u := NewUser("Ann", 10)
	u.UserSubscribedTo = []SubscriptionEdge{{SubscriberID: u.ID}}

	stripped := u.WithoutEdges()
	assert.Nil(t, stripped.UserSubscribedTo)
	assert.Len(t, u.UserSubscribedTo, 1)
}
