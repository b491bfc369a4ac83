package authkit

import "context"

// CredentialStore persists and retrieves user identity records.
//
// Lookups that find nothing return ErrUserNotFound. Save must overwrite the
// full record; the session service relies on it being the sole mutation point
// for the refresh-token hash.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByExternalID(ctx context.Context, googleID string) (*User, error)
	FindByID(ctx context.Context, userID string) (*User, error)
	Create(ctx context.Context, user *User) error
	Save(ctx context.Context, user *User) error
}
