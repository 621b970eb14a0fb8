package domain

import "fmt"

// MemberTypeID is one of the fixed member tier codes.
type MemberTypeID string

const (
	MemberTypeBasic    MemberTypeID = "basic"
	MemberTypeBusiness MemberTypeID = "business"
)

// MemberTypeIDs lists every valid tier code in declaration order.
var MemberTypeIDs = []MemberTypeID{MemberTypeBasic, MemberTypeBusiness}

func (id MemberTypeID) String() string {
	return string(id)
}

// Valid reports whether id is part of the tier enumeration.
func (id MemberTypeID) Valid() bool {
	for _, known := range MemberTypeIDs {
		if id == known {
			return true
		}
	}
	return false
}

// ParseMemberTypeID converts a raw tier code, rejecting anything outside the enumeration.
func ParseMemberTypeID(raw string) (MemberTypeID, error) {
	id := MemberTypeID(raw)
	if !id.Valid() {
		return "", fmt.Errorf("unknown member type %q", raw)
	}
	return id, nil
}

// MemberType is immutable reference data describing a membership tier
type MemberType struct {
	ID                 MemberTypeID `json:"id"`
	Discount           float64      `json:"discount"`
	PostsLimitPerMonth int          `json:"posts_limit_per_month"`
}

func (*MemberType) Kind() Kind { return KindMemberType }

func (m *MemberType) Key() string { return m.ID.String() }
