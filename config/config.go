// Package config holds the runtime configuration of the migration tools.
//
// The file only carries tunables. Endpoints and credentials are read from the
// environment on every call, through Env, so late-injected values are picked
// up without a restart.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/go-playground/validator/v10"
)

// Environment variables read at call time.
const (
	EnvSiteURL   = "CONVEX_SITE_URL"
	EnvTavilyKey = "TAVILY_API_KEY"
)

// Live search providers.
const (
	ProviderTavily      = "tavily"
	ProviderFireplexity = "fireplexity"
)

// Quota backends.
const (
	QuotaMemory = "memory"
	QuotaRedis  = "redis"
	QuotaRemote = "remote"
)

// Default timeouts.
const (
	DefaultSearchTimeout  = 60 * time.Second
	DefaultVisaTimeout    = 30 * time.Second
	DefaultContextTimeout = 10 * time.Second
)

// Env looks up an environment variable.
type Env func(key string) string

// OSEnv reads the process environment.
var OSEnv Env = os.Getenv

// Get returns the trimmed value of key.
func (e Env) Get(key string) string {
	if e == nil {
		e = OSEnv
	}
	return strings.TrimSpace(e(key))
}

// BaseURL returns the value of key without a trailing slash.
func (e Env) BaseURL(key string) string {
	return strings.TrimRight(e.Get(key), "/")
}

// Config of the tools.
type Config struct {
	// SiteURLEnv names the variable holding the backend base URL.
	SiteURLEnv string           `json:"site_url_env,omitempty" yaml:"site_url_env,omitempty"`
	LiveSearch LiveSearchConfig `json:"live_search" yaml:"live_search"`
	Visa       RemoteConfig     `json:"visa" yaml:"visa"`
	Context    RemoteConfig     `json:"user_context" yaml:"user_context"`
	Housing    HousingConfig    `json:"housing" yaml:"housing"`
	Redis      *RedisConfig     `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// LiveSearchConfig configures the quota-gated search.
type LiveSearchConfig struct {
	// Provider is tavily or fireplexity.
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty" validate:"omitempty,oneof=tavily fireplexity"`
	// APIKeyEnv names the variable holding the tavily credential.
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	// BaseURL overrides the tavily API endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// MonthlyLimit is the number of searches allowed per month.
	MonthlyLimit int `json:"monthly_limit,omitempty" yaml:"monthly_limit,omitempty" validate:"gte=0"`
	// QuotaBackend is memory, redis or remote.
	QuotaBackend string `json:"quota_backend,omitempty" yaml:"quota_backend,omitempty" validate:"omitempty,oneof=memory redis remote"`
	// Timeout is a duration string, like 60s.
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// RemoteConfig configures a backend lookup.
type RemoteConfig struct {
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// HousingConfig configures the cached housing dataset.
type HousingConfig struct {
	// DatasetPath replaces the bundled dataset; JSON, YAML or TOML.
	DatasetPath string `json:"dataset_path,omitempty" yaml:"dataset_path,omitempty"`
}

// RedisConfig configures the shared quota counter.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr" validate:"required"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty" validate:"gte=0"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := new(Config)
	cfg.SetDefaults()
	return cfg
}

// Load the configuration from file, apply defaults and validate it.
// An empty file name returns Default().
func Load(file string) (*Config, error) {
	cfg := new(Config)
	if file != "" {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, errors.WithMessagef(err, "failed to load config %q", file)
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	c.SiteURLEnv = values.StringsCoalesce(c.SiteURLEnv, EnvSiteURL)
	c.LiveSearch.Provider = strings.ToLower(values.StringsCoalesce(c.LiveSearch.Provider, ProviderTavily))
	c.LiveSearch.APIKeyEnv = values.StringsCoalesce(c.LiveSearch.APIKeyEnv, EnvTavilyKey)
	c.LiveSearch.MonthlyLimit = values.NumbersCoalesce(c.LiveSearch.MonthlyLimit, 50)
	c.LiveSearch.Timeout = values.StringsCoalesce(c.LiveSearch.Timeout, DefaultSearchTimeout.String())
	c.Visa.Timeout = values.StringsCoalesce(c.Visa.Timeout, DefaultVisaTimeout.String())
	c.Context.Timeout = values.StringsCoalesce(c.Context.Timeout, DefaultContextTimeout.String())

	backend := QuotaMemory
	if c.LiveSearch.Provider == ProviderFireplexity {
		backend = QuotaRemote
	} else if c.Redis != nil {
		backend = QuotaRedis
	}
	c.LiveSearch.QuotaBackend = strings.ToLower(values.StringsCoalesce(c.LiveSearch.QuotaBackend, backend))
	if c.Redis != nil {
		c.Redis.Prefix = values.StringsCoalesce(c.Redis.Prefix, "/tribe")
	}
}

// Validate the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if c.LiveSearch.QuotaBackend == QuotaRedis && c.Redis == nil {
		return errors.New("invalid config: redis quota backend requires redis settings")
	}
	for name, s := range map[string]string{
		"live_search.timeout":  c.LiveSearch.Timeout,
		"visa.timeout":         c.Visa.Timeout,
		"user_context.timeout": c.Context.Timeout,
	} {
		if d, err := time.ParseDuration(s); err != nil || d <= 0 {
			return errors.Newf("invalid config: %s must be a positive duration: %q", name, s)
		}
	}
	return nil
}

// Duration parses s, returning def when s is empty or invalid.
func Duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
