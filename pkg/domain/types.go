package domain

import "time"

// User is the profile record kept by the identity provider.
// Credentials live next to it but are never serialized.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Content is one saved link owned by a profile.
// Checked is the only field that may change after creation.
type Content struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ProfileID string    `json:"profile_id"`
	Checked   bool      `json:"checked"`
	CreatedAt time.Time `json:"created_at"`
}
