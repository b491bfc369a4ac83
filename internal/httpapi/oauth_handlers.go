package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"github.com/mprlab/storefront/internal/authkit"
)

// FederatedVerifier turns a raw ID token into a verified profile.
type FederatedVerifier func(ctx context.Context, rawIDToken string) (*authkit.FederatedProfile, error)

// NewGoogleVerifier validates Google ID tokens against the web client ID.
func NewGoogleVerifier(clientID string) FederatedVerifier {
	return func(ctx context.Context, rawIDToken string) (*authkit.FederatedProfile, error) {
		validator, validatorErr := idtoken.NewValidator(ctx)
		if validatorErr != nil {
			return nil, fmt.Errorf("httpapi.oauth.verifier: %w", validatorErr)
		}
		payload, validateErr := validator.Validate(ctx, rawIDToken, clientID)
		if validateErr != nil {
			return nil, fmt.Errorf("httpapi.oauth.verifier: %w", validateErr)
		}
		issuerValue, _ := payload.Claims["iss"].(string)
		if issuerValue != "https://accounts.google.com" && issuerValue != "accounts.google.com" {
			return nil, fmt.Errorf("httpapi.oauth.verifier: unexpected issuer %q", issuerValue)
		}
		googleSub, _ := payload.Claims["sub"].(string)
		email, _ := payload.Claims["email"].(string)
		emailVerified, _ := payload.Claims["email_verified"].(bool)
		displayName, _ := payload.Claims["name"].(string)
		avatarURL, _ := payload.Claims["picture"].(string)
		if googleSub == "" {
			return nil, fmt.Errorf("httpapi.oauth.verifier: missing subject")
		}
		return &authkit.FederatedProfile{
			GoogleID:      googleSub,
			Email:         email,
			DisplayName:   displayName,
			AvatarURL:     avatarURL,
			EmailVerified: emailVerified,
		}, nil
	}
}

// GoogleOAuthConfig holds the authorization-code flow settings.
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OAuthHandlers drives the redirect-based Google sign-in flow. A one-time
// state token issued on the outbound redirect must come back on the callback.
type OAuthHandlers struct {
	exchange     *oauth2.Config
	states       authkit.StateStore
	resolver     *authkit.IdentityResolver
	sessions     *authkit.SessionService
	verifier     FederatedVerifier
	clientOrigin string
	cookies      CookieConfig
	logger       *zap.Logger
}

// NewOAuthHandlers wires the flow. The verifier defaults to Google ID-token
// validation; tests substitute their own.
func NewOAuthHandlers(configuration GoogleOAuthConfig, states authkit.StateStore, resolver *authkit.IdentityResolver, sessions *authkit.SessionService, verifier FederatedVerifier, clientOrigin string, cookies CookieConfig, logger *zap.Logger) *OAuthHandlers {
	if verifier == nil {
		verifier = NewGoogleVerifier(configuration.ClientID)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthHandlers{
		exchange: &oauth2.Config{
			ClientID:     configuration.ClientID,
			ClientSecret: configuration.ClientSecret,
			RedirectURL:  configuration.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		states:       states,
		resolver:     resolver,
		sessions:     sessions,
		verifier:     verifier,
		clientOrigin: strings.TrimRight(clientOrigin, "/"),
		cookies:      cookies,
		logger:       logger,
	}
}

// SetEndpoint overrides the provider endpoint, for tests against a local
// authorization server.
func (handlers *OAuthHandlers) SetEndpoint(endpoint oauth2.Endpoint) {
	handlers.exchange.Endpoint = endpoint
}

// Mount registers the redirect and callback endpoints under the given group.
func (handlers *OAuthHandlers) Mount(router gin.IRouter) {
	router.GET("/auth/google", handlers.handleStart)
	router.GET("/auth/google/callback", handlers.handleCallback)
}

func (handlers *OAuthHandlers) handleStart(contextGin *gin.Context) {
	state, issueErr := handlers.states.Issue(contextGin)
	if issueErr != nil {
		handlers.logger.Error("oauth state issue failed",
			zap.String("code", "httpapi.oauth.state_issue_failed"),
			zap.Error(issueErr))
		handlers.redirectFailure(contextGin)
		return
	}
	contextGin.Redirect(http.StatusFound, handlers.exchange.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

func (handlers *OAuthHandlers) handleCallback(contextGin *gin.Context) {
	if providerError := contextGin.Query("error"); providerError != "" {
		handlers.logger.Warn("oauth provider returned error",
			zap.String("code", "httpapi.oauth.provider_error"),
			zap.String("provider_error", providerError))
		handlers.redirectFailure(contextGin)
		return
	}

	if consumeErr := handlers.states.Consume(contextGin, contextGin.Query("state")); consumeErr != nil {
		handlers.logger.Warn("oauth state rejected",
			zap.String("code", "httpapi.oauth.state_rejected"),
			zap.Error(consumeErr))
		handlers.redirectFailure(contextGin)
		return
	}

	token, exchangeErr := handlers.exchange.Exchange(contextGin, contextGin.Query("code"))
	if exchangeErr != nil {
		handlers.logger.Warn("oauth code exchange failed",
			zap.String("code", "httpapi.oauth.exchange_failed"),
			zap.Error(exchangeErr))
		handlers.redirectFailure(contextGin)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		handlers.logger.Warn("oauth exchange returned no id token",
			zap.String("code", "httpapi.oauth.missing_id_token"))
		handlers.redirectFailure(contextGin)
		return
	}

	profile, verifyErr := handlers.verifier(contextGin, rawIDToken)
	if verifyErr != nil {
		handlers.logger.Warn("oauth id token rejected",
			zap.String("code", "httpapi.oauth.id_token_rejected"),
			zap.Error(verifyErr))
		handlers.redirectFailure(contextGin)
		return
	}

	user, resolveErr := handlers.resolver.ResolveFederatedIdentity(contextGin, *profile)
	if resolveErr != nil {
		handlers.logger.Error("federated identity resolution failed",
			zap.String("code", "httpapi.oauth.resolve_failed"),
			zap.Error(resolveErr))
		handlers.redirectFailure(contextGin)
		return
	}

	session, sessionErr := handlers.sessions.OpenSession(contextGin, user)
	if sessionErr != nil {
		handlers.logger.Error("federated session open failed",
			zap.String("code", "httpapi.oauth.session_failed"),
			zap.Error(sessionErr))
		handlers.redirectFailure(contextGin)
		return
	}

	handlers.cookies.write(contextGin, session.RefreshToken)
	contextGin.Redirect(http.StatusFound, handlers.clientOrigin+"/auth/callback?token="+url.QueryEscape(session.AccessToken))
}

func (handlers *OAuthHandlers) redirectFailure(contextGin *gin.Context) {
	contextGin.Redirect(http.StatusFound, handlers.clientOrigin+"/login?error=oauth_failed")
}
