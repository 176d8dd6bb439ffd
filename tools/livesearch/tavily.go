package livesearch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	tavilygo "github.com/diverged/tavily-go"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/tmoody1973/tribe-ai/config"
)

// Tavily searches the web with the Tavily answer API.
type Tavily struct {
	env        config.Env
	keyEnv     string
	baseURL    string
	httpClient *http.Client
}

var _ Provider = (*Tavily)(nil)

// NewTavily returns the provider reading the API key from keyEnv.
func NewTavily(env config.Env, keyEnv string) *Tavily {
	if keyEnv == "" {
		keyEnv = config.EnvTavilyKey
	}
	return &Tavily{
		env:        env,
		keyEnv:     keyEnv,
		httpClient: http.DefaultClient,
	}
}

func (p *Tavily) WithBaseURL(baseURL string) *Tavily {
	p.baseURL = baseURL
	return p
}

func (p *Tavily) WithHTTPClient(client *http.Client) *Tavily {
	if client != nil {
		p.httpClient = client
	}
	return p
}

func (p *Tavily) Name() string {
	return config.ProviderTavily
}

func (p *Tavily) Ready() error {
	if p.env.Get(p.keyEnv) == "" {
		return errors.Mark(
			errors.Newf("Live search is not configured. %s environment variable is missing.", p.keyEnv),
			ErrNotConfigured)
	}
	return nil
}

type tavilyOutcome struct {
	res *Response
	err error
}

// Search runs the query. The client library is not context aware, so the
// call is raced against ctx and bounded by the HTTP client timeout.
func (p *Tavily) Search(ctx context.Context, req *Request) (*Response, error) {
	if err := p.Ready(); err != nil {
		return nil, err
	}

	client := tavilygo.NewClient(p.env.Get(p.keyEnv))
	if p.baseURL != "" {
		client.BaseURL = p.baseURL
	}
	hc := *p.httpClient
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			hc.Timeout = d
		}
	}
	client.HTTPClient = &hc

	searchReq := tavilyModels.SearchRequest{
		Query:         req.Text(),
		SearchDepth:   "basic",
		IncludeAnswer: true,
	}

	ch := make(chan tavilyOutcome, 1)
	go func() {
		resp, err := tavilygo.Search(client, searchReq)
		if err != nil {
			ch <- tavilyOutcome{err: err}
			return
		}
		res := &Response{
			Answer:        resp.Answer,
			Sources:       []Source{},
			ScrapedData:   []ScrapedItem{},
			DataFreshness: "Real-time",
		}
		for _, r := range resp.Results {
			res.Sources = append(res.Sources, Source{URL: r.URL, Title: r.Title})
			if r.Content != "" {
				res.ScrapedData = append(res.ScrapedData, ScrapedItem{
					URL:     r.URL,
					Title:   r.Title,
					Preview: preview(r.Content),
				})
			}
		}
		ch <- tavilyOutcome{res: res}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	case out := <-ch:
		if out.err != nil {
			return nil, tavilyError(out.err)
		}
		return out.res, nil
	}
}

// tavilyStatusPrefix starts the error tavily-go returns for a non-200 reply.
const tavilyStatusPrefix = "API request failed with status code"

// tavilyError marks only non-200 replies as upstream errors. Transport and
// decode failures stay unmarked.
func tavilyError(err error) error {
	if strings.HasPrefix(err.Error(), tavilyStatusPrefix) {
		return errors.Mark(errors.Wrap(err, "tavily"), ErrUpstream)
	}
	return errors.Wrap(err, "tavily")
}
