package livesearch

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"github.com/tmoody1973/tribe-ai/config"
	"github.com/tmoody1973/tribe-ai/pkg/llmutils"
	"github.com/tmoody1973/tribe-ai/pkg/netutil"
	"github.com/tmoody1973/tribe-ai/pkg/quota"
)

// SearchPath is the backend search endpoint.
const SearchPath = "/api/fireplexity/search"

// Fireplexity searches through the backend, which combines an answer engine
// with page scraping and counts the search against its own quota.
type Fireplexity struct {
	env        config.Env
	siteURLEnv string
	httpClient *http.Client
}

var _ Provider = (*Fireplexity)(nil)

// NewFireplexity returns the provider calling the backend at the URL held by siteURLEnv.
func NewFireplexity(env config.Env, siteURLEnv string, httpClient *http.Client) *Fireplexity {
	if siteURLEnv == "" {
		siteURLEnv = config.EnvSiteURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fireplexity{
		env:        env,
		siteURLEnv: siteURLEnv,
		httpClient: httpClient,
	}
}

func (p *Fireplexity) Name() string {
	return config.ProviderFireplexity
}

func (p *Fireplexity) Ready() error {
	if p.env.BaseURL(p.siteURLEnv) == "" {
		return errors.Mark(
			errors.Newf("Live search is not configured. %s environment variable is missing.", p.siteURLEnv),
			ErrNotConfigured)
	}
	return nil
}

type fireplexityRequest struct {
	Query         string  `json:"query"`
	TargetCountry *string `json:"targetCountry"`
}

func (p *Fireplexity) Search(ctx context.Context, req *Request) (*Response, error) {
	if err := p.Ready(); err != nil {
		return nil, err
	}

	in := &fireplexityRequest{Query: req.Query}
	if req.TargetCountry != "" {
		in.TargetCountry = &req.TargetCountry
	}

	body, err := netutil.Do(ctx, p.httpClient, http.MethodPost, p.env.BaseURL(p.siteURLEnv)+SearchPath, in)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.Newf("invalid search response: %s", netutil.Truncate(string(body), netutil.MaxDiagnosticLength))
	}

	js := gjson.ParseBytes(body)
	if llmutils.Truthy(js.Get("error")) {
		msg := js.Get("message").String()
		if msg == "" {
			msg = "Search failed"
		}
		return nil, errors.Mark(errors.New(msg), ErrUpstream)
	}

	res := &Response{
		Answer:        js.Get("answer").String(),
		Sources:       parseSources(js.Get("sources")),
		ScrapedData:   []ScrapedItem{},
		DataFreshness: js.Get("dataFreshness").String(),
	}
	if res.DataFreshness == "" {
		res.DataFreshness = "Real-time"
	}

	js.Get("scrapedData").ForEach(func(_, item gjson.Result) bool {
		si := ScrapedItem{
			URL:   item.Get("url").String(),
			Title: item.Get("title").String(),
		}
		switch md := item.Get("markdown").String(); {
		case md != "":
			si.Preview = preview(md)
		case !llmutils.Truthy(item.Get("error")):
			si.Preview = "Content available at source"
		default:
			return true
		}
		res.ScrapedData = append(res.ScrapedData, si)
		return true
	})

	if qs := js.Get("quotaStatus"); qs.IsObject() {
		res.Quota = &quota.Status{
			Used:           int(qs.Get("used").Int()),
			Limit:          int(qs.Get("limit").Int()),
			Remaining:      int(qs.Get("remaining").Int()),
			DaysUntilReset: int(qs.Get("daysUntilReset").Int()),
		}
	}
	return res, nil
}
