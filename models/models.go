// Package models holds the persisted domain types and their public
// representations.
package models

import "time"

// DateLayout is the wire format for calendar dates such as a birth date.
const DateLayout = "2006-01-02"

// User is a stored account. PasswordHash never leaves the server: handlers
// respond with PublicUser, built by Public.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string `json:"-"`
	BirthDate    time.Time
	AvatarURL    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the sanitized user representation returned by the API.
type PublicUser struct {
	ID        string    `json:"id" example:"3f2b8c4e-8a51-4a53-9d1c-1f6f0c9e2a10"`
	FirstName string    `json:"firstName" example:"Ada"`
	LastName  string    `json:"lastName" example:"Lovelace"`
	Email     string    `json:"email" example:"ada@example.com"`
	BirthDate string    `json:"birthDate" example:"1815-12-10"`
	AvatarURL *string   `json:"avatarUrl" example:"/uploads/avatars/5d41402abc4b2a76b9719d911017c592.png"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public maps u to its sanitized representation.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		BirthDate: u.BirthDate.Format(DateLayout),
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ProfilePatch is a partial update of the editable profile fields.
// A nil field is left unchanged.
type ProfilePatch struct {
	FirstName *string
	LastName  *string
	BirthDate *time.Time
}

// IsEmpty reports whether the patch would change nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.BirthDate == nil
}

// AccessLogEntry records one successful login. Entries are append-only.
type AccessLogEntry struct {
	ID        string    `json:"id" example:"9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"`
	UserID    string    `json:"-"`
	IPAddress *string   `json:"ipAddress" example:"203.0.113.7"`
	UserAgent *string   `json:"userAgent" example:"Mozilla/5.0"`
	CreatedAt time.Time `json:"createdAt"`
}
