package livesearch

import (
	"context"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"github.com/tmoody1973/tribe-ai/pkg/netutil"
	"github.com/tmoody1973/tribe-ai/pkg/quota"
)

// MaxPreviewLength caps the scraped content preview.
const MaxPreviewLength = 500

var (
	// ErrNotConfigured is returned by Provider.Ready when a credential or
	// endpoint is missing.
	ErrNotConfigured = errors.New("live search is not configured")
	// ErrUpstream marks an error reported by the search provider.
	ErrUpstream = errors.New("search provider error")
)

// Request is a provider search request.
type Request struct {
	Query         string
	TargetCountry string
}

// Text returns the query focused on the target country.
func (r *Request) Text() string {
	if r.TargetCountry == "" {
		return r.Query
	}
	return r.Query + " in " + r.TargetCountry
}

// Source is a page the answer was drawn from.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// ScrapedItem is a preview of a scraped source.
type ScrapedItem struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Preview string `json:"preview"`
}

// Response is a provider search response.
type Response struct {
	Answer        string
	Sources       []Source
	ScrapedData   []ScrapedItem
	DataFreshness string
	// Quota is the usage reported by the provider, if any.
	Quota *quota.Status
}

// Provider executes live web searches.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// Ready returns ErrNotConfigured when the provider cannot be called.
	// Credentials are resolved on every call.
	Ready() error
	// Search runs the query. The caller sets the deadline on ctx.
	Search(ctx context.Context, req *Request) (*Response, error)
}

func preview(s string) string {
	if utf8.RuneCountInString(s) > MaxPreviewLength {
		return netutil.Truncate(s, MaxPreviewLength) + "..."
	}
	return s
}

// parseSources accepts a list of URLs or of {url, title} objects.
func parseSources(r gjson.Result) []Source {
	list := []Source{}
	r.ForEach(func(_, v gjson.Result) bool {
		switch {
		case v.Type == gjson.String:
			list = append(list, Source{URL: v.Str})
		case v.IsObject():
			list = append(list, Source{
				URL:   v.Get("url").String(),
				Title: v.Get("title").String(),
			})
		}
		return true
	})
	return list
}
