package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lorekeep/chronicle/backend/internal/auth"
	"github.com/lorekeep/chronicle/backend/internal/config"
	"github.com/lorekeep/chronicle/backend/internal/database"
	"github.com/lorekeep/chronicle/backend/internal/i18n"
	"github.com/lorekeep/chronicle/backend/internal/logging"
	"github.com/lorekeep/chronicle/backend/internal/onboarding"
	"github.com/lorekeep/chronicle/backend/internal/routing"
	"github.com/lorekeep/chronicle/backend/internal/server"
	"github.com/lorekeep/chronicle/backend/internal/storage"
	"github.com/lorekeep/chronicle/backend/internal/stories"
	"github.com/lorekeep/chronicle/backend/internal/users"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chronicle-api",
		Short: "Chronicle CMS backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newMintSessionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newMintSessionCommand backs local development: it mints a session
// cookie value in the identity provider's token format so the flows
// behind authentication can be exercised without a live provider.
func newMintSessionCommand() *cobra.Command {
	var (
		userID    string
		email     string
		firstName string
		lastName  string
		onboarded bool
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:    "mint-session",
		Short:  "Mint a development session token",
		Hidden: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			token, err := mintSession(appConfig, sessionProfile{
				UserID:    userID,
				Email:     email,
				FirstName: firstName,
				LastName:  lastName,
				Onboarded: onboarded,
				TTL:       ttl,
			})
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "Provider subject id for the token")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&firstName, "first-name", "", "First name claim")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name claim")
	cmd.Flags().BoolVar(&onboarded, "onboarded", true, "Mark onboarding complete in the token metadata")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}

type sessionProfile struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
	Onboarded bool
	TTL       time.Duration
}

func mintSession(appConfig config.AppConfig, profile sessionProfile) (string, error) {
	issuer := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		Issuer:        appConfig.SessionIssuer,
		TokenTTL:      profile.TTL,
	})
	return issuer.Issue(profile.UserID, auth.SessionClaims{
		UserEmail:     profile.Email,
		UserFirstName: profile.FirstName,
		UserLastName:  profile.LastName,
		Metadata:      auth.SessionMetadata{OnboardingComplete: profile.Onboarded},
	})
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("default-locale", defaults.GetString("i18n.default_locale"), "Default locale code")
	cmd.PersistentFlags().String("identity-base-url", defaults.GetString("identity.base_url"), "Identity provider base URL")
	cmd.PersistentFlags().String("redis-address", defaults.GetString("redis.address"), "Redis address for list caching (optional)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "i18n.default_locale", "default-locale")
	bindFlag(cmd, "identity.base_url", "identity-base-url")
	bindFlag(cmd, "redis.address", "redis-address")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		Issuer:        appConfig.SessionIssuer,
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}

	providerClient, err := auth.NewProviderClient(auth.ProviderClientConfig{
		BaseURL: appConfig.IdentityProvider.BaseURL,
		APIKey:  appConfig.IdentityProvider.APIKey,
		Timeout: appConfig.IdentityProvider.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	usersService, err := users.NewService(users.ServiceConfig{
		Database:           db,
		SupportedLanguages: appConfig.SupportedLocales,
	})
	if err != nil {
		return err
	}

	var listCache stories.ListCache
	if appConfig.RedisAddress != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: appConfig.RedisAddress})
		listCache = stories.NewRedisListCache(redisClient, 0)
		defer redisClient.Close()
	}

	objectStore := storage.NewMinioStore(storage.Config{
		Endpoint:  appConfig.ObjectStore.Endpoint,
		Region:    appConfig.ObjectStore.Region,
		AccessKey: appConfig.ObjectStore.AccessKey,
		SecretKey: appConfig.ObjectStore.SecretKey,
		Bucket:    appConfig.ObjectStore.Bucket,
		PublicURL: appConfig.ObjectStore.PublicURL,
		UseSSL:    appConfig.ObjectStore.UseSSL,
	})

	storiesService, err := stories.NewService(stories.ServiceConfig{
		Database:    db,
		ObjectStore: objectStore,
		ListCache:   listCache,
		Clock:       time.Now,
		IDProvider:  stories.NewUUIDProvider(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	onboardingService, err := onboarding.NewService(onboarding.ServiceConfig{
		Provider: providerClient,
		Users:    usersService,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:   sessionValidator,
		Users:      usersService,
		Stories:    storiesService,
		Onboarding: onboardingService,
		Catalog:    i18n.NewCatalog(appConfig.DefaultLocale),
		Classifier: routing.NewClassifier(routing.ClassifierConfig{
			SupportedLocales: appConfig.SupportedLocales,
		}),
		Locales:    routing.NewLocaleResolver(appConfig.DefaultLocale, appConfig.SupportedLocales),
		SignInPath: appConfig.SignInPath,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
