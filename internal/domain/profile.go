package domain

import "github.com/google/uuid"

// Profile carries optional personal details for a user. A user has at most one.
type Profile struct {
	ID           uuid.UUID    `json:"id"`
	IsMale       bool         `json:"is_male"`
	YearOfBirth  int          `json:"year_of_birth"`
	MemberTypeID MemberTypeID `json:"member_type_id"`
	UserID       uuid.UUID    `json:"user_id"`
}

// NewProfile creates a profile for userID on the given tier
func NewProfile(userID uuid.UUID, memberType MemberTypeID, isMale bool, yearOfBirth int) Profile {
	return Profile{
		ID:           uuid.New(),
		IsMale:       isMale,
		YearOfBirth:  yearOfBirth,
		MemberTypeID: memberType,
		UserID:       userID,
	}
}

func (*Profile) Kind() Kind { return KindProfile }

func (p *Profile) Key() string { return p.ID.String() }
