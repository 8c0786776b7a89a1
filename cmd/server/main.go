package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mprlab/authgate/internal/authcore"
	"github.com/mprlab/authgate/internal/authpg"
	"github.com/mprlab/authgate/internal/guilds"
	"github.com/mprlab/authgate/internal/web"
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
		Use:     "authgate",
		Short:   "Credential and token authority with password login and rotating refresh tokens",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("jwt_signing_key", "", "Base64-encoded HS256 signing secret")
	rootCmd.Flags().Duration("access_ttl", authcore.DefaultAccessTokenTTL, "Access token TTL")
	rootCmd.Flags().Duration("refresh_ttl", authcore.DefaultRefreshTokenTTL, "Refresh token TTL")
	rootCmd.Flags().Int("password_hash_cost", bcrypt.DefaultCost, "bcrypt cost factor for password hashing")
	rootCmd.Flags().String("database_url", "", "Database URL (postgres:// or sqlite://; leave empty for in-memory stores)")
	rootCmd.Flags().String("postgres_driver", "pgx", "Driver for postgres:// URLs: pgx or gorm")
	rootCmd.Flags().Duration("sweep_interval", time.Hour, "How often expired refresh tokens are purged")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled")

	_ = viper.BindPFlag("listen_addr", rootCmd.Flags().Lookup("listen_addr"))
	_ = viper.BindPFlag("jwt_signing_key", rootCmd.Flags().Lookup("jwt_signing_key"))
	_ = viper.BindPFlag("access_ttl", rootCmd.Flags().Lookup("access_ttl"))
	_ = viper.BindPFlag("refresh_ttl", rootCmd.Flags().Lookup("refresh_ttl"))
	_ = viper.BindPFlag("password_hash_cost", rootCmd.Flags().Lookup("password_hash_cost"))
	_ = viper.BindPFlag("database_url", rootCmd.Flags().Lookup("database_url"))
	_ = viper.BindPFlag("postgres_driver", rootCmd.Flags().Lookup("postgres_driver"))
	_ = viper.BindPFlag("sweep_interval", rootCmd.Flags().Lookup("sweep_interval"))
	_ = viper.BindPFlag("enable_cors", rootCmd.Flags().Lookup("enable_cors"))
	_ = viper.BindPFlag("cors_allowed_origins", rootCmd.Flags().Lookup("cors_allowed_origins"))

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const tokenIssuer = "authgate"

const (
	configCodeMissingJWTSigningKey    = "config.missing_jwt_signing_key"
	configCodeInvalidJWTSigningKey    = "config.invalid_jwt_signing_key"
	configCodeInvalidAccessTTL        = "config.invalid_access_ttl"
	configCodeInvalidRefreshTTL       = "config.invalid_refresh_ttl"
	configCodeInvalidPostgresDriver   = "config.invalid_postgres_driver"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
)

type serverConfig struct {
	ListenAddr         string
	SigningKey         []byte
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	PasswordHashCost   int
	DatabaseURL        string
	PostgresDriver     string
	SweepInterval      time.Duration
	EnableCORS         bool
	CORSAllowedOrigins []string
}

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	configuration, loadErr := loadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, configuration))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func loadServerConfig() (serverConfig, error) {
	encodedSigningKey := viper.GetString("jwt_signing_key")
	if encodedSigningKey == "" {
		return serverConfig{}, configError(configCodeMissingJWTSigningKey, "jwt_signing_key must be provided")
	}
	signingKey, decodeErr := base64.StdEncoding.DecodeString(encodedSigningKey)
	if decodeErr != nil || len(signingKey) == 0 {
		return serverConfig{}, configError(configCodeInvalidJWTSigningKey, "jwt_signing_key must be valid base64")
	}

	accessTTL := viper.GetDuration("access_ttl")
	if accessTTL <= 0 {
		return serverConfig{}, configError(configCodeInvalidAccessTTL, "access_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return serverConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	postgresDriver := viper.GetString("postgres_driver")
	if postgresDriver != "pgx" && postgresDriver != "gorm" {
		return serverConfig{}, configError(configCodeInvalidPostgresDriver, "postgres_driver must be pgx or gorm")
	}

	return serverConfig{
		ListenAddr:         viper.GetString("listen_addr"),
		SigningKey:         signingKey,
		AccessTTL:          accessTTL,
		RefreshTTL:         refreshTTL,
		PasswordHashCost:   viper.GetInt("password_hash_cost"),
		DatabaseURL:        viper.GetString("database_url"),
		PostgresDriver:     postgresDriver,
		SweepInterval:      viper.GetDuration("sweep_interval"),
		EnableCORS:         viper.GetBool("enable_cors"),
		CORSAllowedOrigins: viper.GetStringSlice("cors_allowed_origins"),
	}, nil
}

// storeSet bundles the three persistence ports behind one selection.
type storeSet struct {
	Users         authcore.UserStore
	RefreshTokens authcore.RefreshTokenStore
	Guilds        guilds.Store
	Label         string
}

func buildStores(ctx context.Context, configuration serverConfig) (storeSet, error) {
	if configuration.DatabaseURL == "" {
		return storeSet{
			Users:         authcore.NewMemoryUserStore(),
			RefreshTokens: authcore.NewMemoryRefreshTokenStore(),
			Guilds:        guilds.NewMemoryStore(),
			Label:         "memory",
		}, nil
	}

	if configuration.PostgresDriver == "pgx" && isPostgresURL(configuration.DatabaseURL) {
		pool, poolErr := authpg.BuildPool(ctx, configuration.DatabaseURL)
		if poolErr != nil {
			return storeSet{}, poolErr
		}
		if schemaErr := authpg.EnsureSchema(ctx, pool); schemaErr != nil {
			return storeSet{}, schemaErr
		}
		return storeSet{
			Users:         authpg.NewPostgresUserStore(pool),
			RefreshTokens: authpg.NewPostgresRefreshTokenStore(pool),
			Guilds:        authpg.NewPostgresGuildStore(pool),
			Label:         "postgres-pgx",
		}, nil
	}

	gormDB, driverLabel, openErr := authcore.OpenDatabase(ctx, configuration.DatabaseURL)
	if openErr != nil {
		return storeSet{}, openErr
	}
	guildStore, guildErr := guilds.NewDatabaseStore(ctx, gormDB, driverLabel)
	if guildErr != nil {
		return storeSet{}, guildErr
	}
	return storeSet{
		Users:         authcore.NewDatabaseUserStore(gormDB, driverLabel),
		RefreshTokens: authcore.NewDatabaseRefreshTokenStore(gormDB, driverLabel),
		Guilds:        guildStore,
		Label:         driverLabel,
	}, nil
}

func isPostgresURL(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://")
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
	configuration, ok := contextValue.(serverConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	signer, signerErr := authcore.NewTokenSigner(authcore.SignerConfig{
		SigningKey: configuration.SigningKey,
		Issuer:     tokenIssuer,
		AccessTTL:  configuration.AccessTTL,
		RefreshTTL: configuration.RefreshTTL,
	})
	if signerErr != nil {
		return signerErr
	}

	stores, storesErr := buildStores(context.Background(), configuration)
	if storesErr != nil {
		return storesErr
	}
	logger.Info("stores ready", zap.String("backend", stores.Label))

	metricsRecorder := authcore.NewCounterMetrics()
	clock := authcore.NewSystemClock()

	service, serviceErr := authcore.NewAuthService(authcore.AuthServiceDeps{
		Users:         stores.Users,
		RefreshTokens: stores.RefreshTokens,
		Hasher:        authcore.NewPasswordHasher(configuration.PasswordHashCost),
		Signer:        signer,
		Clock:         clock,
		Logger:        logger,
		Metrics:       metricsRecorder,
	})
	if serviceErr != nil {
		return serviceErr
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if configuration.EnableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, configuration.CORSAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	router.Use(authcore.Authenticate(signer))

	api := router.Group("/api")
	web.MountAuthRoutes(api, service, logger)

	protected := api.Group("")
	protected.Use(authcore.RequireIdentity())
	guilds.MountGuildRoutes(protected, stores.Guilds, clock, logger)
	web.MountMetricsRoute(protected, metricsRecorder)

	server := &http.Server{
		Addr:              configuration.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	sweeper := authcore.NewRefreshTokenSweeper(stores.RefreshTokens, configuration.SweepInterval, clock, logger)
	go sweeper.Run(shutdownCtx)

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

	logger.Info("listening", zap.String("addr", configuration.ListenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
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
