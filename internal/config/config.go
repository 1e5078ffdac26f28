// Package config provides configuration management for the oauth-precommit CLI.
// It loads an optional YAML file, an optional .env file and the process environment
// into a single Config value that is built once and handed to the login flow.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied after all sources have been read.
const (
	DefaultAppName         = "oauth-precommit"
	DefaultRedirectPort    = 8080
	DefaultCallbackTimeout = 300 * time.Second
)

// DefaultScopes is used when AUTH0_SCOPES is not provided.
var DefaultScopes = []string{"openid", "profile", "offline_access"}

// Auth0Config holds the authorization server settings for a flow attempt.
type Auth0Config struct {
	// Domain is the Auth0 tenant host, e.g. "my-app.eu.auth0.com".
	Domain string `yaml:"domain" json:"domain" env:"AUTH0_DOMAIN"`

	// ClientID is the public client identifier of the native application.
	ClientID string `yaml:"client-id" json:"client-id" env:"AUTH0_CLIENT_ID"`

	// Audience is the API identifier tokens are requested for.
	Audience string `yaml:"audience" json:"audience" env:"AUTH0_AUDIENCE"`

	// Scopes are sent space-joined in the authorization request.
	Scopes []string `yaml:"scopes" json:"scopes" env:"AUTH0_SCOPES" envSeparator:","`

	// RedirectPort is the loopback port of the callback listener.
	RedirectPort int `yaml:"redirect-port" json:"redirect-port" env:"AUTH0_REDIRECT_PORT"`
}

// Config represents the application's configuration.
type Config struct {
	Auth0 Auth0Config `yaml:"auth0" json:"auth0"`

	// CallbackTimeout bounds the wait for the browser redirect.
	CallbackTimeout time.Duration `yaml:"callback-timeout" json:"callback-timeout" env:"AUTH0_CALLBACK_TIMEOUT"`

	// AppName names the per-application config directory (~/.config/<AppName>).
	AppName string `yaml:"app-name" json:"app-name" env:"OAUTH_APP_NAME"`

	// TokenDir overrides the directory holding tokens.json. A leading ~ is expanded.
	TokenDir string `yaml:"token-dir" json:"token-dir" env:"OAUTH_TOKEN_DIR"`

	// ProxyURL routes the token exchange through an HTTP(S) or SOCKS5 proxy.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url" env:"OAUTH_PROXY_URL"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug" env:"OAUTH_DEBUG"`

	// LoggingToFile switches log output from stderr to a rotating file.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file" env:"OAUTH_LOGGING_TO_FILE"`

	// LogsMaxTotalSizeMB caps the log directory size; <= 0 disables the cleaner.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb" env:"OAUTH_LOGS_MAX_TOTAL_SIZE_MB"`

	// Mirrors configures optional remote copies of the token record.
	Mirrors MirrorConfig `yaml:"mirrors" json:"mirrors"`
}

// LoadConfig builds a Config from, in increasing precedence: the YAML file at configPath
// (skipped when empty or missing), the .env file at envFile (skipped when empty or missing)
// and the process environment. Defaults fill whatever is still unset.
// LoadConfig does not validate; callers run Validate at the flow boundary.
func LoadConfig(configPath, envFile string) (*Config, error) {
	cfg := &Config{}

	if path := strings.TrimSpace(configPath); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err = yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if path := strings.TrimSpace(envFile); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults normalizes values and fills unset fields with defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg == nil {
		return
	}
	cfg.Auth0.Domain = normalizeDomain(cfg.Auth0.Domain)
	cfg.Auth0.ClientID = strings.TrimSpace(cfg.Auth0.ClientID)
	cfg.Auth0.Audience = strings.TrimSpace(cfg.Auth0.Audience)
	cfg.Auth0.Scopes = normalizeScopes(cfg.Auth0.Scopes)
	if len(cfg.Auth0.Scopes) == 0 {
		cfg.Auth0.Scopes = append([]string(nil), DefaultScopes...)
	}
	if cfg.Auth0.RedirectPort == 0 {
		cfg.Auth0.RedirectPort = DefaultRedirectPort
	}
	if cfg.CallbackTimeout == 0 {
		cfg.CallbackTimeout = DefaultCallbackTimeout
	}
	cfg.AppName = strings.TrimSpace(cfg.AppName)
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}
	cfg.TokenDir = strings.TrimSpace(cfg.TokenDir)
	cfg.ProxyURL = strings.TrimSpace(cfg.ProxyURL)
	cfg.Mirrors.normalize()
}

// Validate reports every missing or invalid setting required before a flow attempt starts.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("configuration is required")
	}
	var problems []string
	if cfg.Auth0.Domain == "" {
		problems = append(problems, "AUTH0_DOMAIN is required")
	} else if strings.ContainsAny(cfg.Auth0.Domain, "/?# ") {
		problems = append(problems, fmt.Sprintf("AUTH0_DOMAIN %q must be a bare host name", cfg.Auth0.Domain))
	}
	if cfg.Auth0.ClientID == "" {
		problems = append(problems, "AUTH0_CLIENT_ID is required")
	}
	if cfg.Auth0.Audience == "" {
		problems = append(problems, "AUTH0_AUDIENCE is required")
	}
	if len(cfg.Auth0.Scopes) == 0 {
		problems = append(problems, "AUTH0_SCOPES must list at least one scope")
	}
	if cfg.Auth0.RedirectPort < 1 || cfg.Auth0.RedirectPort > 65535 {
		problems = append(problems, fmt.Sprintf("AUTH0_REDIRECT_PORT %d is out of range", cfg.Auth0.RedirectPort))
	}
	if cfg.CallbackTimeout <= 0 {
		problems = append(problems, "AUTH0_CALLBACK_TIMEOUT must be positive")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// normalizeDomain accepts "https://tenant.auth0.com/" and reduces it to the host.
func normalizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimRight(domain, "/")
}

func normalizeScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		// A YAML list entry may still hold "openid profile".
		for _, part := range strings.Fields(scope) {
			out = append(out, part)
		}
	}
	return out
}
