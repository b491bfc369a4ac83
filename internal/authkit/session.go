package authkit

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Session is the result of a successful register, login, or rotation: the
// user plus a freshly issued access/refresh pair.
type Session struct {
	User         *User
	AccessToken  string
	RefreshToken string
}

// SessionService issues, rotates, and revokes sessions. The persisted
// refresh-token hash on the user record is its only mutable session state,
// and every successful Register/Login/Rotate writes it exactly once.
//
// Two concurrent rotations presenting the same not-yet-consumed refresh token
// both succeed; the later write wins and the earlier pair dies on its next
// rotation. That race is accepted under the single-active-session model and
// no cross-request locking is taken.
type SessionService struct {
	credentials   CredentialStore
	issuer        *TokenIssuer
	configuration Config
	logger        *zap.Logger
	metrics       *Metrics
}

// NewSessionService wires the rotation service.
func NewSessionService(credentials CredentialStore, issuer *TokenIssuer, configuration Config, logger *zap.Logger, metrics *Metrics) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &SessionService{
		credentials:   credentials,
		issuer:        issuer,
		configuration: configuration,
		logger:        logger,
		metrics:       metrics,
	}
}

// Register creates a local-provider user and opens its first session.
func (service *SessionService) Register(ctx context.Context, email string, password string) (*Session, error) {
	normalized := NormalizeEmail(email)
	if existing, findErr := service.credentials.FindByEmail(ctx, normalized); findErr == nil && existing != nil {
		return nil, fmt.Errorf("auth.session.register: %w", ErrDuplicateEmail)
	} else if findErr != nil && !errors.Is(findErr, ErrUserNotFound) {
		return nil, fmt.Errorf("auth.session.register: %w", findErr)
	}

	passwordHash, hashErr := HashPassword(password, service.configuration.passwordHashCost())
	if hashErr != nil {
		return nil, fmt.Errorf("auth.session.register: %w", hashErr)
	}

	user := &User{
		Email:        normalized,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		Provider:     ProviderLocal,
	}
	if createErr := service.credentials.Create(ctx, user); createErr != nil {
		if errors.Is(createErr, ErrDuplicateEmail) {
			return nil, fmt.Errorf("auth.session.register: %w", ErrDuplicateEmail)
		}
		return nil, fmt.Errorf("auth.session.register: %w", createErr)
	}

	session, issueErr := service.openSession(ctx, user, "")
	if issueErr != nil {
		return nil, fmt.Errorf("auth.session.register: %w", issueErr)
	}
	service.metrics.Increment(EventRegister)
	service.logger.Info("user registered",
		zap.String("code", "auth.session.registered"),
		zap.String("user_id", user.ID))
	return session, nil
}

// Login authenticates a local-provider user. Absent users, passwordless
// federated accounts, and hash mismatches all fail identically.
func (service *SessionService) Login(ctx context.Context, email string, password string) (*Session, error) {
	user, findErr := service.credentials.FindByEmail(ctx, NormalizeEmail(email))
	if findErr != nil {
		if errors.Is(findErr, ErrUserNotFound) {
			return nil, fmt.Errorf("auth.session.login: %w", ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("auth.session.login: %w", findErr)
	}
	if !CheckPassword(user.PasswordHash, password) {
		service.metrics.Increment(EventLoginRejected)
		return nil, fmt.Errorf("auth.session.login: %w", ErrInvalidCredentials)
	}

	session, issueErr := service.openSession(ctx, user, "")
	if issueErr != nil {
		return nil, fmt.Errorf("auth.session.login: %w", issueErr)
	}
	service.metrics.Increment(EventLogin)
	return session, nil
}

// Rotate exchanges a presented refresh token for a fresh pair. The new
// refresh token reuses the prior token identifier, and persisting its hash
// invalidates the token just consumed.
func (service *SessionService) Rotate(ctx context.Context, presentedRefreshToken string) (*Session, error) {
	claims, verifyErr := service.issuer.VerifyRefreshToken(presentedRefreshToken)
	if verifyErr != nil {
		service.metrics.Increment(EventRotateRejected)
		return nil, fmt.Errorf("auth.session.rotate: %w", ErrInvalidRefreshToken)
	}

	user, findErr := service.credentials.FindByID(ctx, claims.Subject)
	if findErr != nil {
		service.metrics.Increment(EventRotateRejected)
		return nil, fmt.Errorf("auth.session.rotate: %w", ErrInvalidRefreshToken)
	}
	if user.RefreshTokenHash == "" || user.RefreshTokenHash != HashRefreshToken(presentedRefreshToken) {
		service.metrics.Increment(EventRotateRejected)
		service.logger.Warn("refresh token hash mismatch",
			zap.String("code", "auth.session.rotate_mismatch"),
			zap.String("user_id", user.ID))
		return nil, fmt.Errorf("auth.session.rotate: %w", ErrInvalidRefreshToken)
	}

	session, issueErr := service.openSession(ctx, user, claims.TokenID)
	if issueErr != nil {
		return nil, fmt.Errorf("auth.session.rotate: %w", issueErr)
	}
	service.metrics.Increment(EventRotate)
	return session, nil
}

// Logout clears the stored refresh-token hash. Unknown subjects are treated
// as already logged out.
func (service *SessionService) Logout(ctx context.Context, userID string) error {
	user, findErr := service.credentials.FindByID(ctx, userID)
	if findErr != nil {
		if errors.Is(findErr, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("auth.session.logout: %w", findErr)
	}
	if user.RefreshTokenHash == "" {
		return nil
	}
	user.RefreshTokenHash = ""
	if saveErr := service.credentials.Save(ctx, user); saveErr != nil {
		return fmt.Errorf("auth.session.logout: %w", saveErr)
	}
	service.metrics.Increment(EventLogout)
	return nil
}

// OpenSession issues a pair for an already-authenticated user, such as a
// federated login, and persists the refresh hash.
func (service *SessionService) OpenSession(ctx context.Context, user *User) (*Session, error) {
	session, err := service.openSession(ctx, user, "")
	if err != nil {
		return nil, fmt.Errorf("auth.session.open: %w", err)
	}
	service.metrics.Increment(EventLogin)
	return session, nil
}

func (service *SessionService) openSession(ctx context.Context, user *User, existingTokenID string) (*Session, error) {
	accessToken, accessErr := service.issuer.IssueAccessToken(user.ID, user.Email, user.Role)
	if accessErr != nil {
		return nil, accessErr
	}
	refreshToken, tokenID, refreshErr := service.issuer.IssueRefreshToken(user.ID, existingTokenID)
	if refreshErr != nil {
		return nil, refreshErr
	}

	user.RefreshTokenHash = HashRefreshToken(refreshToken)
	if saveErr := service.credentials.Save(ctx, user); saveErr != nil {
		return nil, saveErr
	}
	service.logger.Debug("refresh token rotated",
		zap.String("code", "auth.session.refresh_persisted"),
		zap.String("user_id", user.ID),
		zap.String("token_id", tokenID))

	return &Session{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
