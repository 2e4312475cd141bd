package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "CHRONICLE"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "chronicle.db"
	defaultLogLevel        = "info"
	defaultCookieName      = "__session"
	defaultSessionIssuer   = "chronicle-identity"
	defaultSignInPath      = "/sign-in"
	defaultLocale          = "en"
	defaultStorageRegion   = "us-east-1"
	defaultProviderTimeout = 10 * time.Second
)

var defaultSupportedLocales = []string{"en", "es"}

// ObjectStoreConfig carries the S3-compatible upload credentials.
// Values are validated at upload time, not at startup, so a deployment
// without uploads can run with the section empty.
type ObjectStoreConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string
	UseSSL    bool
}

// IdentityProviderConfig points at the external identity service used
// for user profile reads and metadata writes.
type IdentityProviderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress          string
	DatabasePath         string
	LogLevel             string
	SessionSigningSecret string
	SessionIssuer        string
	SessionCookieName    string
	SignInPath           string
	DefaultLocale        string
	SupportedLocales     []string
	RedisAddress         string
	IdentityProvider     IdentityProviderConfig
	ObjectStore          ObjectStoreConfig
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.issuer", defaultSessionIssuer)
	configViper.SetDefault("routes.sign_in_path", defaultSignInPath)
	configViper.SetDefault("i18n.default_locale", defaultLocale)
	configViper.SetDefault("i18n.supported_locales", defaultSupportedLocales)
	configViper.SetDefault("identity.timeout", defaultProviderTimeout.String())
	configViper.SetDefault("storage.region", defaultStorageRegion)
	configViper.SetDefault("storage.use_ssl", true)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		DatabasePath:         configViper.GetString("database.path"),
		LogLevel:             configViper.GetString("log.level"),
		SessionSigningSecret: configViper.GetString("session.signing_secret"),
		SessionIssuer:        configViper.GetString("session.issuer"),
		SessionCookieName:    configViper.GetString("session.cookie_name"),
		SignInPath:           configViper.GetString("routes.sign_in_path"),
		DefaultLocale:        configViper.GetString("i18n.default_locale"),
		SupportedLocales:     configViper.GetStringSlice("i18n.supported_locales"),
		RedisAddress:         configViper.GetString("redis.address"),
		IdentityProvider: IdentityProviderConfig{
			BaseURL: configViper.GetString("identity.base_url"),
			APIKey:  configViper.GetString("identity.api_key"),
			Timeout: configViper.GetDuration("identity.timeout"),
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:  configViper.GetString("storage.endpoint"),
			Region:    configViper.GetString("storage.region"),
			AccessKey: configViper.GetString("storage.access_key"),
			SecretKey: configViper.GetString("storage.secret_key"),
			Bucket:    configViper.GetString("storage.bucket"),
			PublicURL: configViper.GetString("storage.public_url"),
			UseSSL:    configViper.GetBool("storage.use_ssl"),
		},
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if strings.TrimSpace(c.DefaultLocale) == "" {
		return fmt.Errorf("i18n.default_locale is required")
	}
	if len(c.SupportedLocales) == 0 {
		return fmt.Errorf("i18n.supported_locales must not be empty")
	}
	supported := false
	for _, locale := range c.SupportedLocales {
		if strings.EqualFold(locale, c.DefaultLocale) {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("i18n.default_locale %q must appear in i18n.supported_locales", c.DefaultLocale)
	}
	return nil
}
