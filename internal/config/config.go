// Package config loads the cookiedemo server configuration.
//
// Values are resolved in order: built-in defaults, then the optional YAML
// file, then COOKIEDEMO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Morditux/cookiesession"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "COOKIEDEMO_"

// DefaultSecret signs cookies when no secret is configured. It is public and
// only fit for local development.
const DefaultSecret = "ChOoO-ChooOoooOOOooOOooO-chooOOOose a BettER SEcRET!!"

// Revocation backends.
const (
	BackendNone      = "none"
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
	BackendMemcached = "memcached"
	BackendRedis     = "redis"
)

type Config struct {
	ListenAddr      string           `yaml:"listen_addr"`
	ShutdownTimeout time.Duration    `yaml:"shutdown_timeout"`
	Cookie          CookieConfig     `yaml:"cookie"`
	Revocation      RevocationConfig `yaml:"revocation"`
	Log             LogConfig        `yaml:"log"`
	Telemetry       TelemetryConfig  `yaml:"telemetry"`
}

type CookieConfig struct {
	Name     string        `yaml:"name"`
	Path     string        `yaml:"path"`
	Domain   string        `yaml:"domain"`
	Secrets  []string      `yaml:"secrets"` // newest first
	MaxAge   time.Duration `yaml:"max_age"`
	Secure   bool          `yaml:"secure"`
	HttpOnly bool          `yaml:"http_only"`
	SameSite string        `yaml:"same_site"` // lax, strict or none
	Encrypt  bool          `yaml:"encrypt"`
}

type RevocationConfig struct {
	Backend         string        `yaml:"backend"`
	DSN             string        `yaml:"dsn"`   // sqlite and postgres
	Addrs           []string      `yaml:"addrs"` // memcached servers or the redis address
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"` // empty disables export
	Insecure     bool   `yaml:"insecure"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		ListenAddr:      ":3000",
		ShutdownTimeout: 10 * time.Second,
		Cookie: CookieConfig{
			Name:     "cookiedemo_session",
			Path:     "/",
			Secrets:  []string{DefaultSecret},
			MaxAge:   time.Hour,
			Secure:   true,
			HttpOnly: true,
			SameSite: "lax",
		},
		Revocation: RevocationConfig{
			Backend:         BackendNone,
			CleanupInterval: 10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "cookiedemo",
		},
	}
}

// Load reads the configuration. path may be empty; getenv is usually os.Getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	env := func(name string) string { return strings.TrimSpace(getenv(EnvPrefix + name)) }

	if v := env("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := env("SESSION_SECRETS"); v != "" {
		cfg.Cookie.Secrets = splitList(v)
	}
	if v := env("COOKIE_NAME"); v != "" {
		cfg.Cookie.Name = v
	}
	if v := env("COOKIE_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sCOOKIE_MAX_AGE: %w", EnvPrefix, err)
		}
		cfg.Cookie.MaxAge = d
	}
	if v := env("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sCOOKIE_SECURE: %w", EnvPrefix, err)
		}
		cfg.Cookie.Secure = b
	}
	if v := env("COOKIE_ENCRYPT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sCOOKIE_ENCRYPT: %w", EnvPrefix, err)
		}
		cfg.Cookie.Encrypt = b
	}
	if v := env("REVOCATION_BACKEND"); v != "" {
		cfg.Revocation.Backend = strings.ToLower(v)
	}
	if v := env("REVOCATION_DSN"); v != "" {
		cfg.Revocation.DSN = v
	}
	if v := env("REVOCATION_ADDRS"); v != "" {
		cfg.Revocation.Addrs = splitList(v)
	}
	if v := env("REVOCATION_CLEANUP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sREVOCATION_CLEANUP_INTERVAL: %w", EnvPrefix, err)
		}
		cfg.Revocation.CleanupInterval = d
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := env("OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports configuration errors that would otherwise surface at startup.
func (c Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if len(c.Cookie.Secrets) == 0 {
		errs = append(errs, errors.New("cookie.secrets must not be empty"))
	}
	for i, s := range c.Cookie.Secrets {
		if len(s) < cookiesession.MinSecretBytes {
			errs = append(errs, fmt.Errorf("cookie.secrets[%d] must be at least %d bytes", i, cookiesession.MinSecretBytes))
		}
	}
	if c.Cookie.MaxAge <= 0 {
		errs = append(errs, errors.New("cookie.max_age must be positive"))
	}
	if _, err := ParseSameSite(c.Cookie.SameSite); err != nil {
		errs = append(errs, err)
	}

	if c.Revocation.CleanupInterval <= 0 {
		errs = append(errs, errors.New("revocation.cleanup_interval must be positive"))
	}

	switch c.Revocation.Backend {
	case "", BackendNone, BackendMemory:
	case BackendSQLite, BackendPostgres:
		if c.Revocation.DSN == "" {
			errs = append(errs, fmt.Errorf("revocation.dsn is required for the %s backend", c.Revocation.Backend))
		}
	case BackendMemcached, BackendRedis:
		if len(c.Revocation.Addrs) == 0 {
			errs = append(errs, fmt.Errorf("revocation.addrs is required for the %s backend", c.Revocation.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown revocation.backend %q", c.Revocation.Backend))
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ParseSameSite maps lax, strict and none to their http.SameSite mode.
func ParseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(v) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unknown cookie.same_site %q", v)
	}
}

// ManagerConfig converts the cookie settings into a cookiesession.Config.
// Store, Logger and Registerer are left for the caller.
func (c Config) ManagerConfig() cookiesession.Config {
	sameSite, _ := ParseSameSite(c.Cookie.SameSite)
	secrets := make([][]byte, len(c.Cookie.Secrets))
	for i, s := range c.Cookie.Secrets {
		secrets[i] = []byte(s)
	}
	secure := c.Cookie.Secure
	httpOnly := c.Cookie.HttpOnly

	return cookiesession.Config{
		CookieName:      c.Cookie.Name,
		CookiePath:      c.Cookie.Path,
		CookieDomain:    c.Cookie.Domain,
		Secrets:         secrets,
		TTL:             c.Cookie.MaxAge,
		HttpOnly:        &httpOnly,
		Secure:          &secure,
		SameSite:        sameSite,
		Encrypt:         c.Cookie.Encrypt,
		CleanupInterval: c.Revocation.CleanupInterval,
	}
}
