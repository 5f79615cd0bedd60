package models

import "strings"

// User is the directory record for a known user. Accounts are created and
// managed elsewhere; this service only reads them to resolve mentions and to
// build display projections.
type User struct {
	Model
	FirstName string `json:"first_name" binding:"required,min=2"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" gorm:"unique;not null" binding:"required,email"`
	Handle    string `json:"handle" gorm:"index"`
}

// UserSummary is the display projection embedded in message and conversation
// responses in place of a raw user id.
type UserSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID.String(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
