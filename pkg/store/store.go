package store

import "readlater/pkg/domain"

// Store defines persistence operations for profiles and content rows.
type Store interface {
	// profiles
	SaveProfile(domain.User) error
	HasProfileEmail(email string) (bool, error)
	GetProfileByEmail(email string) (domain.User, bool, error)
	GetProfileByID(id string) (domain.User, bool, error)

	// content
	CreateContent(domain.Content) error
	ListContentByProfile(profileID string) ([]domain.Content, error)
	// SetContentChecked updates the checked flag of the row matching both
	// id and profile id. The bool result is false when no owned row matched.
	SetContentChecked(id, profileID string, checked bool) (domain.Content, bool, error)
}

// SessionStore issues and resolves access tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// JWK is a JSON Web Key entry served on the JWKS endpoint.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSProvider is implemented by session stores that publish signing keys.
type JWKSProvider interface {
	JWKS() []JWK
}
