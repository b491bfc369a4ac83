package authkit

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	errMissingAccessSecret  = errors.New("auth.config.missing_access_token_secret")
	errMissingRefreshSecret = errors.New("auth.config.missing_refresh_token_secret")
	errSharedTokenSecret    = errors.New("auth.config.shared_token_secret")
	errInvalidAccessTTL     = errors.New("auth.config.invalid_access_token_ttl")
	errInvalidRefreshTTL    = errors.New("auth.config.invalid_refresh_token_ttl")
	errWeakPasswordHashCost = errors.New("auth.config.weak_password_hash_cost")
)

// Config configures token issuance and password hashing.
type Config struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	Issuer             string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	PasswordHashCost   int
}

// MinPasswordHashCost is the lowest accepted bcrypt cost.
const MinPasswordHashCost = 10

// Validate rejects unusable token secrets and lifetimes. The access and
// refresh secrets must differ so compromise of one cannot forge the other.
func (configuration Config) Validate() error {
	if len(configuration.AccessTokenSecret) == 0 {
		return fmt.Errorf("auth.config: %w", errMissingAccessSecret)
	}
	if len(configuration.RefreshTokenSecret) == 0 {
		return fmt.Errorf("auth.config: %w", errMissingRefreshSecret)
	}
	if bytes.Equal(configuration.AccessTokenSecret, configuration.RefreshTokenSecret) {
		return fmt.Errorf("auth.config: %w", errSharedTokenSecret)
	}
	if configuration.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.config: %w", errInvalidAccessTTL)
	}
	if configuration.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.config: %w", errInvalidRefreshTTL)
	}
	if cost := configuration.PasswordHashCost; cost != 0 && cost < MinPasswordHashCost {
		return fmt.Errorf("auth.config: %w", errWeakPasswordHashCost)
	}
	return nil
}

func (configuration Config) passwordHashCost() int {
	if configuration.PasswordHashCost == 0 {
		return bcrypt.DefaultCost + 2
	}
	return configuration.PasswordHashCost
}
