package domain

import "time"

// Identity is the authenticated user record. Email is the unique key.
type Identity struct {
	ID      IdentityID
	Subject SubjectID

	Email       string
	DisplayName string
	AvatarURL   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NameOrEmail returns the display name, falling back to the email address.
func (i Identity) NameOrEmail() string {
	if n := NormalizeHumanName(i.DisplayName); n != "" {
		return n
	}
	return i.Email
}
