package authkit

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims are embedded in the short-lived access token.
type AccessClaims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims are embedded in the long-lived refresh token. TokenID stays
// stable across rotations of the same session.
type RefreshClaims struct {
	TokenID string `json:"token_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies the access/refresh token pair. The two
// token kinds use separate secrets.
type TokenIssuer struct {
	configuration Config
	clock         Clock
}

// NewTokenIssuer validates the configuration and constructs an issuer.
func NewTokenIssuer(configuration Config, clock Clock) (*TokenIssuer, error) {
	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	return &TokenIssuer{configuration: configuration, clock: clock}, nil
}

// IssueAccessToken signs a stateless access token carrying subject, email,
// and role.
func (issuer *TokenIssuer) IssueAccessToken(userID string, email string, role Role) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("auth.tokens.issue_access: subject must be non-empty")
	}
	issuedAt := issuer.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer.configuration.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(issuer.configuration.AccessTokenTTL)),
		},
	})
	signed, err := token.SignedString(issuer.configuration.AccessTokenSecret)
	if err != nil {
		return "", fmt.Errorf("auth.tokens.issue_access: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken signs a refresh token. A fresh token identifier is
// generated unless one is supplied, which is the rotation-in-place case.
func (issuer *TokenIssuer) IssueRefreshToken(userID string, existingTokenID string) (string, string, error) {
	if userID == "" {
		return "", "", fmt.Errorf("auth.tokens.issue_refresh: subject must be non-empty")
	}
	tokenID := existingTokenID
	if tokenID == "" {
		tokenID = uuid.NewString()
	}
	issuedAt := issuer.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		TokenID: tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer.configuration.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(issuer.configuration.RefreshTokenTTL)),
		},
	})
	signed, err := token.SignedString(issuer.configuration.RefreshTokenSecret)
	if err != nil {
		return "", "", fmt.Errorf("auth.tokens.issue_refresh: %w", err)
	}
	return signed, tokenID, nil
}

// VerifyAccessToken checks signature and expiry against the access secret.
func (issuer *TokenIssuer) VerifyAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := issuer.parse(token, claims, issuer.configuration.AccessTokenSecret); err != nil {
		return nil, fmt.Errorf("auth.tokens.verify_access: %w", err)
	}
	return claims, nil
}

// VerifyRefreshToken checks signature and expiry against the refresh secret.
func (issuer *TokenIssuer) VerifyRefreshToken(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := issuer.parse(token, claims, issuer.configuration.RefreshTokenSecret); err != nil {
		return nil, fmt.Errorf("auth.tokens.verify_refresh: %w", err)
	}
	return claims, nil
}

func (issuer *TokenIssuer) parse(token string, claims jwt.Claims, secret []byte) error {
	parsedToken, parseErr := jwt.ParseWithClaims(token, claims, func(parsed *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time {
		return issuer.clock.Now()
	}))
	if parseErr != nil || parsedToken == nil || !parsedToken.Valid {
		return ErrInvalidToken
	}
	if issuerName, issuerErr := parsedToken.Claims.GetIssuer(); issuerErr != nil || issuerName != issuer.configuration.Issuer {
		return ErrInvalidToken
	}
	return nil
}
