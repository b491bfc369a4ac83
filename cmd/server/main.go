package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mprlab/storefront/internal/authkit"
	"github.com/mprlab/storefront/internal/commerce"
	"github.com/mprlab/storefront/internal/httpapi"
	"github.com/mprlab/storefront/internal/payments"
	"github.com/mprlab/storefront/internal/store"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "storefront",
		Short:   "E-commerce backend with JWT sessions, rotating refresh tokens, Google sign-in, and payment intents",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("database_url", "sqlite://storefront.db", "Database URL (postgres:// or sqlite://)")
	rootCmd.Flags().String("access_token_secret", "", "HS256 signing secret for access tokens")
	rootCmd.Flags().String("refresh_token_secret", "", "HS256 signing secret for refresh tokens; must differ from the access secret")
	rootCmd.Flags().Duration("access_token_ttl", 15*time.Minute, "Access token TTL")
	rootCmd.Flags().Duration("refresh_token_ttl", 7*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().String("client_origin", "http://localhost:3000", "Frontend origin for OAuth redirects")
	rootCmd.Flags().String("cookie_domain", "", "Cookie domain; empty for host-only")
	rootCmd.Flags().Bool("dev_insecure_http", false, "Drop the Secure cookie attribute for local dev")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled")
	rootCmd.Flags().String("google_client_id", "", "Google OAuth web client ID")
	rootCmd.Flags().String("google_client_secret", "", "Google OAuth web client secret")
	rootCmd.Flags().String("google_redirect_url", "", "Google OAuth callback URL")
	rootCmd.Flags().Duration("oauth_state_ttl", 5*time.Minute, "Lifetime of one-time OAuth state tokens")
	rootCmd.Flags().String("stripe_secret_key", "", "Payment provider secret key")
	rootCmd.Flags().String("stripe_webhook_secret", "", "Payment provider webhook signing secret")
	rootCmd.Flags().String("stripe_api_base", "", "Payment provider API base; empty for the default")
	rootCmd.Flags().Int("auth_rate_limit", 20, "Requests allowed per window per IP on auth endpoints")
	rootCmd.Flags().Duration("auth_rate_window", time.Minute, "Rate limit window on auth endpoints")
	rootCmd.Flags().String("admin_email", "", "Admin account to create or promote at startup")
	rootCmd.Flags().String("admin_password", "", "Password for the seeded admin account")

	for _, name := range []string{
		"listen_addr", "database_url", "access_token_secret", "refresh_token_secret",
		"access_token_ttl", "refresh_token_ttl", "client_origin", "cookie_domain",
		"dev_insecure_http", "enable_cors", "cors_allowed_origins",
		"google_client_id", "google_client_secret", "google_redirect_url", "oauth_state_ttl",
		"stripe_secret_key", "stripe_webhook_secret", "stripe_api_base",
		"auth_rate_limit", "auth_rate_window", "admin_email", "admin_password",
	} {
		_ = viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const tokenIssuerName = "storefront"

const (
	configCodeMissingAccessSecret  = "config.missing_access_token_secret"
	configCodeMissingRefreshSecret = "config.missing_refresh_token_secret"
	configCodeSharedSecret         = "config.shared_token_secret"
	configCodeInvalidAccessTTL     = "config.invalid_access_token_ttl"
	configCodeInvalidRefreshTTL    = "config.invalid_refresh_token_ttl"
	configCodeMissingCORSOrigins   = "config.missing_cors_allowed_origins"
	configCodeIncompleteAdminSeed  = "config.incomplete_admin_seed"
	configCodeIncompleteOAuth      = "config.incomplete_google_oauth"
	configCodeUninitialized        = "config.uninitialized_server_config"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

// ServerConfig is the validated runtime configuration.
type ServerConfig struct {
	ListenAddr         string
	DatabaseURL        string
	Auth               authkit.Config
	ClientOrigin       string
	CookieDomain       string
	DevInsecureHTTP    bool
	EnableCORS         bool
	CORSAllowedOrigins []string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	OAuthStateTTL      time.Duration
	StripeSecretKey    string
	StripeWebhookKey   string
	StripeAPIBase      string
	AuthRateLimit      int
	AuthRateWindow     time.Duration
	AdminEmail         string
	AdminPassword      string
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadServerConfig reads and validates all settings from viper.
func LoadServerConfig() (ServerConfig, error) {
	accessSecret := viper.GetString("access_token_secret")
	if accessSecret == "" {
		return ServerConfig{}, configError(configCodeMissingAccessSecret, "access_token_secret must be provided")
	}
	refreshSecret := viper.GetString("refresh_token_secret")
	if refreshSecret == "" {
		return ServerConfig{}, configError(configCodeMissingRefreshSecret, "refresh_token_secret must be provided")
	}
	if accessSecret == refreshSecret {
		return ServerConfig{}, configError(configCodeSharedSecret, "access and refresh token secrets must differ")
	}

	accessTTL := viper.GetDuration("access_token_ttl")
	if accessTTL <= 0 {
		return ServerConfig{}, configError(configCodeInvalidAccessTTL, "access_token_ttl must be greater than zero")
	}
	refreshTTL := viper.GetDuration("refresh_token_ttl")
	if refreshTTL <= 0 {
		return ServerConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_token_ttl must be greater than zero")
	}

	enableCORS := viper.GetBool("enable_cors")
	corsOrigins := viper.GetStringSlice("cors_allowed_origins")
	if enableCORS && len(corsOrigins) == 0 {
		return ServerConfig{}, configError(configCodeMissingCORSOrigins, "cors_allowed_origins must be provided when enable_cors is true")
	}

	adminEmail := viper.GetString("admin_email")
	adminPassword := viper.GetString("admin_password")
	if (adminEmail == "") != (adminPassword == "") {
		return ServerConfig{}, configError(configCodeIncompleteAdminSeed, "admin_email and admin_password must be set together")
	}

	googleClientID := viper.GetString("google_client_id")
	googleClientSecret := viper.GetString("google_client_secret")
	googleRedirectURL := viper.GetString("google_redirect_url")
	if googleClientID != "" && (googleClientSecret == "" || googleRedirectURL == "") {
		return ServerConfig{}, configError(configCodeIncompleteOAuth, "google_client_secret and google_redirect_url must accompany google_client_id")
	}

	stateTTL := 5 * time.Minute
	if configured := viper.GetDuration("oauth_state_ttl"); configured > 0 {
		stateTTL = configured
	}

	return ServerConfig{
		ListenAddr:  viper.GetString("listen_addr"),
		DatabaseURL: viper.GetString("database_url"),
		Auth: authkit.Config{
			AccessTokenSecret:  []byte(accessSecret),
			RefreshTokenSecret: []byte(refreshSecret),
			Issuer:             tokenIssuerName,
			AccessTokenTTL:     accessTTL,
			RefreshTokenTTL:    refreshTTL,
		},
		ClientOrigin:       viper.GetString("client_origin"),
		CookieDomain:       viper.GetString("cookie_domain"),
		DevInsecureHTTP:    viper.GetBool("dev_insecure_http"),
		EnableCORS:         enableCORS,
		CORSAllowedOrigins: corsOrigins,
		GoogleClientID:     googleClientID,
		GoogleClientSecret: googleClientSecret,
		GoogleRedirectURL:  googleRedirectURL,
		OAuthStateTTL:      stateTTL,
		StripeSecretKey:    viper.GetString("stripe_secret_key"),
		StripeWebhookKey:   viper.GetString("stripe_webhook_secret"),
		StripeAPIBase:      viper.GetString("stripe_api_base"),
		AuthRateLimit:      viper.GetInt("auth_rate_limit"),
		AuthRateWindow:     viper.GetDuration("auth_rate_window"),
		AdminEmail:         adminEmail,
		AdminPassword:      adminPassword,
	}, nil
}

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(ServerConfig)
	if !ok {
		return configError(configCodeUninitialized, "server configuration not prepared; PreRunE must execute before RunE")
	}

	database, openErr := store.Open(context.Background(), serverConfig.DatabaseURL)
	if openErr != nil {
		return openErr
	}
	logger.Info("database ready", zap.String("driver", database.Driver()))

	credentials := store.NewUsers(database)
	catalog := store.NewCatalog(database)
	carts := store.NewCarts(database)
	orders := store.NewOrders(database)

	issuer, issuerErr := authkit.NewTokenIssuer(serverConfig.Auth, nil)
	if issuerErr != nil {
		return issuerErr
	}

	registry := prometheus.NewRegistry()
	metrics := authkit.NewMetrics()
	if registerErr := metrics.Register(registry); registerErr != nil {
		return registerErr
	}

	sessions := authkit.NewSessionService(credentials, issuer, serverConfig.Auth, logger, metrics)
	resolver := authkit.NewIdentityResolver(credentials, logger, metrics)
	states := authkit.NewMemoryStateStore(serverConfig.OAuthStateTTL)

	if seedErr := seedAdminAccount(context.Background(), serverConfig, credentials, logger); seedErr != nil {
		return seedErr
	}

	cartService := commerce.NewCartService(catalog, carts, logger)
	provider := payments.NewStripeProvider(payments.StripeConfig{
		APIBase:       serverConfig.StripeAPIBase,
		SecretKey:     serverConfig.StripeSecretKey,
		WebhookSecret: serverConfig.StripeWebhookKey,
		Logger:        logger,
	})
	checkout := commerce.NewCheckoutService(catalog, orders, cartService, provider, logger)

	cookies := httpapi.CookieConfig{
		Domain: serverConfig.CookieDomain,
		Secure: !serverConfig.DevInsecureHTTP,
		TTL:    serverConfig.Auth.RefreshTokenTTL,
	}
	if serverConfig.EnableCORS {
		cookies.SameSite = http.SameSiteNoneMode
	}

	oauth := httpapi.NewOAuthHandlers(httpapi.GoogleOAuthConfig{
		ClientID:     serverConfig.GoogleClientID,
		ClientSecret: serverConfig.GoogleClientSecret,
		RedirectURL:  serverConfig.GoogleRedirectURL,
	}, states, resolver, sessions, nil, serverConfig.ClientOrigin, cookies, logger)

	var corsOrigins []string
	if serverConfig.EnableCORS {
		corsOrigins = serverConfig.CORSAllowedOrigins
	}

	var authRateLimiter *httpapi.RateLimiter
	if serverConfig.AuthRateLimit > 0 && serverConfig.AuthRateWindow > 0 {
		authRateLimiter = httpapi.NewRateLimiter(serverConfig.AuthRateLimit, serverConfig.AuthRateWindow)
	}

	gin.SetMode(gin.ReleaseMode)
	router, routerErr := httpapi.NewRouter(httpapi.RouterConfig{
		Logger:             logger,
		Issuer:             issuer,
		Credentials:        credentials,
		Auth:               httpapi.NewAuthHandlers(sessions, issuer, cookies, logger),
		OAuth:              oauth,
		Catalog:            httpapi.NewCatalogHandlers(catalog, logger),
		Cart:               httpapi.NewCartHandlers(cartService, logger),
		Orders:             httpapi.NewOrderHandlers(orders, logger),
		Payments:           httpapi.NewPaymentHandlers(checkout, provider, logger),
		AuthRateLimiter:    authRateLimiter,
		CORSAllowedOrigins: corsOrigins,
		MetricsRegistry:    registry,
	})
	if routerErr != nil {
		return routerErr
	}

	server := &http.Server{
		Addr:              serverConfig.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", serverConfig.ListenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

// seedAdminAccount creates or promotes the configured admin account. Password
// rules match registration.
func seedAdminAccount(ctx context.Context, serverConfig ServerConfig, credentials authkit.CredentialStore, logger *zap.Logger) error {
	if serverConfig.AdminEmail == "" {
		return nil
	}
	if len(serverConfig.AdminPassword) < 8 {
		return configError(configCodeIncompleteAdminSeed, "admin_password must be at least 8 characters")
	}

	normalized := authkit.NormalizeEmail(serverConfig.AdminEmail)
	existing, findErr := credentials.FindByEmail(ctx, normalized)
	switch {
	case findErr == nil:
		if existing.Role == authkit.RoleAdmin {
			return nil
		}
		existing.Role = authkit.RoleAdmin
		if saveErr := credentials.Save(ctx, existing); saveErr != nil {
			return saveErr
		}
		logger.Info("promoted account to admin",
			zap.String("code", "seed.admin_promoted"),
			zap.String("user_id", existing.ID))
		return nil
	case !errors.Is(findErr, authkit.ErrUserNotFound):
		return findErr
	}

	passwordHash, hashErr := authkit.HashPassword(serverConfig.AdminPassword, serverConfig.Auth.PasswordHashCost)
	if hashErr != nil {
		return hashErr
	}
	admin := &authkit.User{
		Email:         normalized,
		PasswordHash:  passwordHash,
		Role:          authkit.RoleAdmin,
		Provider:      authkit.ProviderLocal,
		EmailVerified: true,
	}
	if createErr := credentials.Create(ctx, admin); createErr != nil {
		return createErr
	}
	logger.Info("seeded admin account",
		zap.String("code", "seed.admin_created"),
		zap.String("user_id", admin.ID))
	return nil
}
