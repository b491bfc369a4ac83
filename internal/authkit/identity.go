package authkit

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// FederatedProfile is what the Google integration hands over after verifying
// an ID token.
type FederatedProfile struct {
	GoogleID      string
	Email         string
	DisplayName   string
	AvatarURL     string
	EmailVerified bool
}

// IdentityResolver reconciles federated identities with local accounts.
type IdentityResolver struct {
	credentials CredentialStore
	logger      *zap.Logger
	metrics     *Metrics
}

// NewIdentityResolver wires the resolver.
func NewIdentityResolver(credentials CredentialStore, logger *zap.Logger, metrics *Metrics) *IdentityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &IdentityResolver{credentials: credentials, logger: logger, metrics: metrics}
}

// ResolveFederatedIdentity finds or creates the user for a Google profile.
//
// Lookup order: by Google subject, then by email (which links the federated
// id onto an existing local account without password re-entry), then create.
// The email-link step trusts the provider's verification signal; an
// unverified provider email still links, which is logged as a warning.
func (resolver *IdentityResolver) ResolveFederatedIdentity(ctx context.Context, profile FederatedProfile) (*User, error) {
	if profile.Email == "" {
		return nil, fmt.Errorf("auth.identity.resolve: %w", ErrMissingEmail)
	}
	normalized := NormalizeEmail(profile.Email)

	user, findErr := resolver.credentials.FindByExternalID(ctx, profile.GoogleID)
	switch {
	case findErr == nil:
		if updated := applyProfileDrift(user, profile); updated {
			if saveErr := resolver.credentials.Save(ctx, user); saveErr != nil {
				return nil, fmt.Errorf("auth.identity.resolve: %w", saveErr)
			}
			resolver.logger.Info("federated profile updated",
				zap.String("code", "auth.identity.profile_updated"),
				zap.String("user_id", user.ID))
		}
		resolver.metrics.Increment(EventFederatedLogin)
		return user, nil
	case !errors.Is(findErr, ErrUserNotFound):
		return nil, fmt.Errorf("auth.identity.resolve: %w", findErr)
	}

	user, findErr = resolver.credentials.FindByEmail(ctx, normalized)
	switch {
	case findErr == nil:
		if !profile.EmailVerified {
			resolver.logger.Warn("linking account on unverified provider email",
				zap.String("code", "auth.identity.unverified_link"),
				zap.String("user_id", user.ID))
		}
		user.GoogleID = profile.GoogleID
		user.EmailVerified = true
		user.DisplayName = profile.DisplayName
		user.AvatarURL = profile.AvatarURL
		if saveErr := resolver.credentials.Save(ctx, user); saveErr != nil {
			return nil, fmt.Errorf("auth.identity.resolve: %w", saveErr)
		}
		resolver.metrics.Increment(EventAccountLinked)
		resolver.logger.Info("federated identity linked",
			zap.String("code", "auth.identity.linked"),
			zap.String("user_id", user.ID),
			zap.String("previous_provider", string(user.Provider)))
		return user, nil
	case !errors.Is(findErr, ErrUserNotFound):
		return nil, fmt.Errorf("auth.identity.resolve: %w", findErr)
	}

	user = &User{
		Email:         normalized,
		Role:          RoleUser,
		Provider:      ProviderGoogle,
		GoogleID:      profile.GoogleID,
		EmailVerified: true,
		DisplayName:   profile.DisplayName,
		AvatarURL:     profile.AvatarURL,
	}
	if createErr := resolver.credentials.Create(ctx, user); createErr != nil {
		return nil, fmt.Errorf("auth.identity.resolve: %w", createErr)
	}
	resolver.metrics.Increment(EventFederatedLogin)
	resolver.logger.Info("federated user created",
		zap.String("code", "auth.identity.created"),
		zap.String("user_id", user.ID))
	return user, nil
}

func applyProfileDrift(user *User, profile FederatedProfile) bool {
	updated := false
	if user.DisplayName != profile.DisplayName {
		user.DisplayName = profile.DisplayName
		updated = true
	}
	if user.AvatarURL != profile.AvatarURL {
		user.AvatarURL = profile.AvatarURL
		updated = true
	}
	return updated
}
