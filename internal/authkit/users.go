package authkit

import (
	"strings"
	"time"
)

// Role distinguishes regular shoppers from catalog administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Provider identifies how an account authenticates.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
)

// User is the identity record owned by the credential store.
//
// A local-provider user always carries a password hash; a federated user may
// lack one. GoogleID, when present, is unique across all users. At most one
// refresh-token hash is retained per user; rotation overwrites it.
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	Role             Role
	Provider         Provider
	GoogleID         string
	RefreshTokenHash string
	EmailVerified    bool
	DisplayName      string
	AvatarURL        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PublicUser is the wire-safe projection of a User. Password and
// refresh-token hashes never leave the server.
type PublicUser struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Role          Role     `json:"role"`
	Provider      Provider `json:"provider"`
	EmailVerified bool     `json:"isEmailVerified"`
	DisplayName   string   `json:"displayName,omitempty"`
	AvatarURL     string   `json:"avatar,omitempty"`
}

// Public strips credential material from the user record.
func (user *User) Public() PublicUser {
	return PublicUser{
		ID:            user.ID,
		Email:         user.Email,
		Role:          user.Role,
		Provider:      user.Provider,
		EmailVerified: user.EmailVerified,
		DisplayName:   user.DisplayName,
		AvatarURL:     user.AvatarURL,
	}
}

// NormalizeEmail lower-cases and trims an email address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
