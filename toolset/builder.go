package toolset

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
	"github.com/tmoody1973/tribe-ai/config"
	"github.com/tmoody1973/tribe-ai/pkg/quota"
	"github.com/tmoody1973/tribe-ai/tools/housing"
	"github.com/tmoody1973/tribe-ai/tools/livesearch"
	"github.com/tmoody1973/tribe-ai/tools/usercontext"
	"github.com/tmoody1973/tribe-ai/tools/visa"
)

// Options are collaborators injected into FromConfig.
type Options struct {
	// Env resolves endpoints and credentials at call time, OSEnv by default.
	Env config.Env
	// HTTPClient is used by every remote tool, http.DefaultClient by default.
	HTTPClient *http.Client
	// Counter replaces the quota counter selected by the configuration.
	Counter quota.Counter
}

// FromConfig builds the migration tools.
func FromConfig(cfg *config.Config, opts Options) (*Toolset, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	env := opts.Env
	if env == nil {
		env = config.OSEnv
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	var closers []func() error
	counter := opts.Counter
	if counter == nil {
		var closer func() error
		var err error
		counter, closer, err = newCounter(cfg, env, hc)
		if err != nil {
			return nil, err
		}
		if closer != nil {
			closers = append(closers, closer)
		}
	}

	var provider livesearch.Provider
	switch cfg.LiveSearch.Provider {
	case config.ProviderFireplexity:
		provider = livesearch.NewFireplexity(env, cfg.SiteURLEnv, hc)
	default:
		provider = livesearch.NewTavily(env, cfg.LiveSearch.APIKeyEnv).
			WithBaseURL(cfg.LiveSearch.BaseURL).
			WithHTTPClient(hc)
	}

	housingOpts := []housing.Option{housing.WithQuotaLimit(cfg.LiveSearch.MonthlyLimit)}
	if cfg.Housing.DatasetPath != "" {
		housingOpts = append(housingOpts, housing.WithDatasetPath(cfg.Housing.DatasetPath))
	}

	s := New(
		housing.New(housingOpts...),
		livesearch.New(provider, counter).
			WithTimeout(config.Duration(cfg.LiveSearch.Timeout, config.DefaultSearchTimeout)),
		visa.New(env,
			visa.WithSiteURLEnv(cfg.SiteURLEnv),
			visa.WithHTTPClient(hc),
			visa.WithTimeout(config.Duration(cfg.Visa.Timeout, config.DefaultVisaTimeout))),
		usercontext.New(env).
			WithSiteURLEnv(cfg.SiteURLEnv).
			WithHTTPClient(hc).
			WithTimeout(config.Duration(cfg.Context.Timeout, config.DefaultContextTimeout)),
	)
	s.closers = closers

	logger.KV(xlog.INFO,
		"tools", s.Names(),
		"provider", provider.Name(),
		"quota", counter.Name(),
		"limit", cfg.LiveSearch.MonthlyLimit)
	return s, nil
}

func newCounter(cfg *config.Config, env config.Env, hc *http.Client) (quota.Counter, func() error, error) {
	switch cfg.LiveSearch.QuotaBackend {
	case config.QuotaRedis:
		if cfg.Redis == nil {
			return nil, nil, errors.New("redis quota backend requires redis settings")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return quota.NewRedis(client, cfg.Redis.Prefix, cfg.LiveSearch.MonthlyLimit), client.Close, nil
	case config.QuotaRemote:
		base := func() string { return env.BaseURL(cfg.SiteURLEnv) }
		return quota.NewRemote(base, hc), nil, nil
	case config.QuotaMemory, "":
		return quota.NewMemory(cfg.LiveSearch.MonthlyLimit), nil, nil
	default:
		return nil, nil, errors.Newf("unsupported quota backend: %s", cfg.LiveSearch.QuotaBackend)
	}
}
