package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mprlab/storefront/internal/authkit"
)

// RefreshCookieName is the HTTP-only cookie carrying the refresh token.
const RefreshCookieName = "refreshToken"

const minPasswordLength = 8

// CookieConfig shapes the refresh cookie. Secure is dropped only for local
// development over plain HTTP.
type CookieConfig struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
	TTL      time.Duration
}

func (configuration CookieConfig) write(contextGin *gin.Context, refreshToken string) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		Domain:   configuration.Domain,
		MaxAge:   int(configuration.TTL / time.Second),
		Secure:   configuration.Secure,
		HttpOnly: true,
		SameSite: configuration.sameSiteMode(),
	})
}

func (configuration CookieConfig) clear(contextGin *gin.Context) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		Domain:   configuration.Domain,
		MaxAge:   -1,
		Secure:   configuration.Secure,
		HttpOnly: true,
		SameSite: configuration.sameSiteMode(),
	})
}

func (configuration CookieConfig) sameSiteMode() http.SameSite {
	if configuration.SameSite == 0 {
		return http.SameSiteStrictMode
	}
	return configuration.SameSite
}

// AuthHandlers serves registration, login, rotation, logout, and profile
// lookup.
type AuthHandlers struct {
	sessions *authkit.SessionService
	issuer   *authkit.TokenIssuer
	cookies  CookieConfig
	logger   *zap.Logger
}

// NewAuthHandlers wires the auth endpoints.
func NewAuthHandlers(sessions *authkit.SessionService, issuer *authkit.TokenIssuer, cookies CookieConfig, logger *zap.Logger) *AuthHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandlers{sessions: sessions, issuer: issuer, cookies: cookies, logger: logger}
}

// Mount registers the endpoints on /auth under the given group.
func (handlers *AuthHandlers) Mount(router gin.IRouter, requireAuth gin.HandlerFunc) {
	router.POST("/auth/register", handlers.handleRegister)
	router.POST("/auth/login", handlers.handleLogin)
	router.POST("/auth/refresh", handlers.handleRefresh)
	router.POST("/auth/logout", handlers.handleLogout)
	router.GET("/auth/me", requireAuth, handlers.handleMe)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (handlers *AuthHandlers) handleRegister(contextGin *gin.Context) {
	var inbound credentialsRequest
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
		respondError(contextGin, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fieldErrors := validateCredentials(inbound); len(fieldErrors) > 0 {
		respondErrorDetails(contextGin, http.StatusBadRequest, "Validation failed", fieldErrors)
		return
	}

	session, registerErr := handlers.sessions.Register(contextGin, inbound.Email, inbound.Password)
	if registerErr != nil {
		if errors.Is(registerErr, authkit.ErrDuplicateEmail) {
			respondError(contextGin, http.StatusConflict, "Email already registered")
			return
		}
		handlers.logger.Error("registration failed",
			zap.String("code", "httpapi.auth.register_failed"),
			zap.Error(registerErr))
		respondError(contextGin, http.StatusInternalServerError, "Registration failed")
		return
	}

	handlers.cookies.write(contextGin, session.RefreshToken)
	respondSuccess(contextGin, http.StatusCreated, sessionPayload(session))
}

func (handlers *AuthHandlers) handleLogin(contextGin *gin.Context) {
	var inbound credentialsRequest
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
		respondError(contextGin, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, loginErr := handlers.sessions.Login(contextGin, inbound.Email, inbound.Password)
	if loginErr != nil {
		if errors.Is(loginErr, authkit.ErrInvalidCredentials) {
			respondError(contextGin, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		handlers.logger.Error("login failed",
			zap.String("code", "httpapi.auth.login_failed"),
			zap.Error(loginErr))
		respondError(contextGin, http.StatusInternalServerError, "Login failed")
		return
	}

	handlers.cookies.write(contextGin, session.RefreshToken)
	respondSuccess(contextGin, http.StatusOK, sessionPayload(session))
}

// handleRefresh rotates a refresh token presented in the cookie or, for
// non-browser clients, the request body. A rejected token clears the cookie
// so the browser stops retrying with it.
func (handlers *AuthHandlers) handleRefresh(contextGin *gin.Context) {
	presented := refreshTokenFromRequest(contextGin)
	if presented == "" {
		respondError(contextGin, http.StatusUnauthorized, "Refresh token required")
		return
	}

	session, rotateErr := handlers.sessions.Rotate(contextGin, presented)
	if rotateErr != nil {
		handlers.cookies.clear(contextGin)
		respondError(contextGin, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	handlers.cookies.write(contextGin, session.RefreshToken)
	respondSuccess(contextGin, http.StatusOK, sessionPayload(session))
}

func (handlers *AuthHandlers) handleLogout(contextGin *gin.Context) {
	if presented := refreshTokenFromRequest(contextGin); presented != "" {
		if claims, verifyErr := handlers.issuer.VerifyRefreshToken(presented); verifyErr == nil {
			if logoutErr := handlers.sessions.Logout(contextGin, claims.Subject); logoutErr != nil {
				handlers.logger.Warn("logout cleanup failed",
					zap.String("code", "httpapi.auth.logout_failed"),
					zap.Error(logoutErr))
			}
		}
	}
	handlers.cookies.clear(contextGin)
	respondMessage(contextGin, http.StatusOK, nil, "Logged out")
}

func (handlers *AuthHandlers) handleMe(contextGin *gin.Context) {
	user := currentUser(contextGin)
	if user == nil {
		respondError(contextGin, http.StatusUnauthorized, "Authentication required")
		return
	}
	respondSuccess(contextGin, http.StatusOK, gin.H{"user": user.Public()})
}

func refreshTokenFromRequest(contextGin *gin.Context) string {
	if cookie, cookieErr := contextGin.Request.Cookie(RefreshCookieName); cookieErr == nil && strings.TrimSpace(cookie.Value) != "" {
		return cookie.Value
	}
	var inbound struct {
		RefreshToken string `json:"refreshToken"`
	}
	if bindErr := contextGin.ShouldBindJSON(&inbound); bindErr == nil {
		return strings.TrimSpace(inbound.RefreshToken)
	}
	return ""
}

func validateCredentials(inbound credentialsRequest) map[string]string {
	fieldErrors := make(map[string]string)
	email := strings.TrimSpace(inbound.Email)
	if email == "" || !strings.Contains(email, "@") {
		fieldErrors["email"] = "A valid email address is required"
	}
	if len(inbound.Password) < minPasswordLength {
		fieldErrors["password"] = "Password must be at least 8 characters"
	}
	return fieldErrors
}

func sessionPayload(session *authkit.Session) gin.H {
	return gin.H{
		"user": session.User.Public(),
		"tokens": gin.H{
			"accessToken": session.AccessToken,
		},
	}
}
