package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

type Config struct {
	Port                int           `envconfig:"PORT" default:"8080"`
	Env                 string        `envconfig:"ENV" default:"dev"`          // dev, staging, prod
	LogLevel            string        `envconfig:"LOG_LEVEL" default:"info"`   // debug, info, warn, error
	LogFormat           string        `envconfig:"LOG_FORMAT" default:"json"`  // json, text
	ShutdownGracePeriod time.Duration `envconfig:"SHUTDOWN_GRACE_PERIOD" default:"10s"`

	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"sqlite"` // sqlite, postgres
	DatabaseFile   string `envconfig:"DATABASE_FILE" default:"gatekeeper.db"`
	DatabaseURL    string `envconfig:"DATABASE_URL"` // required for postgres

	PepperFile string `envconfig:"PEPPER_FILE" default:"pepper"`

	TokenAlgorithm           string `envconfig:"TOKEN_ALGORITHM" default:"HS256"` // HS256, EdDSA
	SecretKey                string `envconfig:"SECRET_KEY"`                      // HS256; generated per process when empty
	SigningKeyFile           string `envconfig:"SIGNING_KEY_FILE" default:"signing.key"`
	AccessTokenExpireSeconds int    `envconfig:"ACCESS_TOKEN_EXPIRE_SECONDS" default:"86400"`
	TokenIssuer              string `envconfig:"TOKEN_ISSUER" default:"gatekeeper"`

	// BootstrapToken, when set, must accompany SuperAdmin initialization.
	BootstrapToken string `envconfig:"BOOTSTRAP_TOKEN"`

	// Rate limit profiles, requests per window with a burst allowance.
	RateLimitStrictRequests    int `envconfig:"RATELIMIT_STRICT_REQUESTS" default:"5"`
	RateLimitStrictWindowSec   int `envconfig:"RATELIMIT_STRICT_WINDOW_SEC" default:"60"`
	RateLimitStrictBurst       int `envconfig:"RATELIMIT_STRICT_BURST" default:"5"`
	RateLimitModerateRequests  int `envconfig:"RATELIMIT_MODERATE_REQUESTS" default:"20"`
	RateLimitModerateWindowSec int `envconfig:"RATELIMIT_MODERATE_WINDOW_SEC" default:"60"`
	RateLimitModerateBurst     int `envconfig:"RATELIMIT_MODERATE_BURST" default:"20"`
	RateLimitLenientRequests   int `envconfig:"RATELIMIT_LENIENT_REQUESTS" default:"100"`
	RateLimitLenientWindowSec  int `envconfig:"RATELIMIT_LENIENT_WINDOW_SEC" default:"60"`
	RateLimitLenientBurst      int `envconfig:"RATELIMIT_LENIENT_BURST" default:"100"`
	RateLimitPublicRequests    int `envconfig:"RATELIMIT_PUBLIC_REQUESTS" default:"1000"`
	RateLimitPublicWindowSec   int `envconfig:"RATELIMIT_PUBLIC_WINDOW_SEC" default:"60"`
	RateLimitPublicBurst       int `envconfig:"RATELIMIT_PUBLIC_BURST" default:"1000"`
}

// RateLimits assembles the router's limit profiles.
func (c Config) RateLimits() httpx.RateLimits {
	profile := func(requests, windowSec, burst int) httpx.RateLimitConfig {
		return httpx.RateLimitConfig{
			RequestsPerWindow: requests,
			Window:            time.Duration(windowSec) * time.Second,
			Burst:             burst,
		}
	}
	return httpx.RateLimits{
		Strict:   profile(c.RateLimitStrictRequests, c.RateLimitStrictWindowSec, c.RateLimitStrictBurst),
		Moderate: profile(c.RateLimitModerateRequests, c.RateLimitModerateWindowSec, c.RateLimitModerateBurst),
		Lenient:  profile(c.RateLimitLenientRequests, c.RateLimitLenientWindowSec, c.RateLimitLenientBurst),
		Public:   profile(c.RateLimitPublicRequests, c.RateLimitPublicWindowSec, c.RateLimitPublicBurst),
	}
}

// AccessTokenTTL is the configured token lifetime.
func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireSeconds) * time.Second
}

// IsDevelopment reports whether the service runs in a dev environment.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "dev")
}

// LoadConfig reads an optional dotenv file, then the environment. Variables
// already set in the environment win over the file.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case "sqlite":
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("DATABASE_FILE is required for sqlite"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver))
	}

	switch c.TokenAlgorithm {
	case "HS256":
		if c.SecretKey != "" && len(c.SecretKey) < 32 {
			errs = append(errs, errors.New("SECRET_KEY must be at least 32 bytes"))
		}
	case "EdDSA":
		if c.SigningKeyFile == "" {
			errs = append(errs, errors.New("SIGNING_KEY_FILE is required for EdDSA"))
		}
	default:
		errs = append(errs, fmt.Errorf("TOKEN_ALGORITHM must be HS256 or EdDSA, got %q", c.TokenAlgorithm))
	}

	if c.AccessTokenExpireSeconds <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_SECONDS must be positive"))
	}
	limits := c.RateLimits()
	for name, l := range map[string]httpx.RateLimitConfig{
		"STRICT":   limits.Strict,
		"MODERATE": limits.Moderate,
		"LENIENT":  limits.Lenient,
		"PUBLIC":   limits.Public,
	} {
		if l.RequestsPerWindow <= 0 || l.Window <= 0 || l.Burst <= 0 {
			errs = append(errs, fmt.Errorf("RATELIMIT_%s_* values must be positive", name))
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}

	return errors.Join(errs...)
}
