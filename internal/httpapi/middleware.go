package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mprlab/storefront/internal/authkit"
)

const contextUserKey = "httpapi.current_user"

// RequireAuth verifies the bearer access token and loads the subject's user
// record into the request context.
func RequireAuth(issuer *authkit.TokenIssuer, credentials authkit.CredentialStore) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		header := contextGin.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			respondError(contextGin, http.StatusUnauthorized, "Authentication required")
			return
		}

		claims, verifyErr := issuer.VerifyAccessToken(strings.TrimSpace(token))
		if verifyErr != nil {
			respondError(contextGin, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		user, findErr := credentials.FindByID(contextGin, claims.Subject)
		if findErr != nil {
			respondError(contextGin, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		contextGin.Set(contextUserKey, user)
		contextGin.Next()
	}
}

// OptionalAuth loads the user when a valid bearer token is present and lets
// anonymous requests through untouched.
func OptionalAuth(issuer *authkit.TokenIssuer, credentials authkit.CredentialStore) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		header := contextGin.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			contextGin.Next()
			return
		}
		claims, verifyErr := issuer.VerifyAccessToken(strings.TrimSpace(token))
		if verifyErr != nil {
			contextGin.Next()
			return
		}
		if user, findErr := credentials.FindByID(contextGin, claims.Subject); findErr == nil {
			contextGin.Set(contextUserKey, user)
		}
		contextGin.Next()
	}
}

// RequireRole gates a route group to one role. Mount after RequireAuth.
func RequireRole(role authkit.Role) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		user := currentUser(contextGin)
		if user == nil {
			respondError(contextGin, http.StatusUnauthorized, "Authentication required")
			return
		}
		if user.Role != role {
			respondError(contextGin, http.StatusForbidden, "Insufficient privileges")
			return
		}
		contextGin.Next()
	}
}

func currentUser(contextGin *gin.Context) *authkit.User {
	value, exists := contextGin.Get(contextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*authkit.User)
	if !ok {
		return nil
	}
	return user
}

// ZapLogger logs one line per request.
func ZapLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
