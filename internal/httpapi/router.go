package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mprlab/storefront/internal/authkit"
)

// RouterConfig collects everything the HTTP surface needs.
type RouterConfig struct {
	Logger      *zap.Logger
	Issuer      *authkit.TokenIssuer
	Credentials authkit.CredentialStore

	Auth     *AuthHandlers
	OAuth    *OAuthHandlers
	Catalog  *CatalogHandlers
	Cart     *CartHandlers
	Orders   *OrderHandlers
	Payments *PaymentHandlers

	// AuthRateLimiter, when set, throttles /api/auth/* per client IP.
	AuthRateLimiter *RateLimiter
	// CORSAllowedOrigins, when non-empty, enables CORS for those origins.
	CORSAllowedOrigins []string
	// MetricsRegistry, when set, exposes /metrics.
	MetricsRegistry *prometheus.Registry
}

// NewRouter assembles the gin engine: recovery, request logging, optional
// CORS, the /api route tree, health, and metrics.
func NewRouter(configuration RouterConfig) (*gin.Engine, error) {
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ZapLogger(logger))

	if len(configuration.CORSAllowedOrigins) > 0 {
		corsMiddleware, corsErr := ConfigureCORS(logger, configuration.CORSAllowedOrigins)
		if corsErr != nil {
			return nil, corsErr
		}
		router.Use(corsMiddleware)
	}

	requireAuth := RequireAuth(configuration.Issuer, configuration.Credentials)
	optionalAuth := OptionalAuth(configuration.Issuer, configuration.Credentials)

	api := router.Group("/api")

	authGroup := api.Group("")
	if configuration.AuthRateLimiter != nil {
		authGroup.Use(configuration.AuthRateLimiter.Middleware())
	}
	configuration.Auth.Mount(authGroup, requireAuth)
	configuration.OAuth.Mount(authGroup)

	admin := api.Group("/admin", requireAuth, RequireRole(authkit.RoleAdmin))
	configuration.Catalog.Mount(api, admin, optionalAuth)

	authenticated := api.Group("", requireAuth)
	configuration.Cart.Mount(authenticated)
	configuration.Orders.Mount(authenticated, admin)
	configuration.Payments.Mount(authenticated, api)

	router.GET("/healthz", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if configuration.MetricsRegistry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(configuration.MetricsRegistry, promhttp.HandlerOpts{})))
	}

	return router, nil
}
