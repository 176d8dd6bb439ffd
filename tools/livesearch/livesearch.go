// Package livesearch provides the quota-gated live web search.
//
// Every search takes a quota reservation first. A search that fails or times
// out cancels its reservation, and only a successful search is counted.
package livesearch

import (
	"context"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/tmoody1973/tribe-ai/config"
	"github.com/tmoody1973/tribe-ai/pkg/metricskey"
	"github.com/tmoody1973/tribe-ai/pkg/netutil"
	"github.com/tmoody1973/tribe-ai/pkg/quota"
	"github.com/tmoody1973/tribe-ai/pkg/schema"
	"github.com/tmoody1973/tribe-ai/tools"
)

var logger = xlog.NewPackageLogger("github.com/tmoody1973/tribe-ai/tools", "livesearch")

const ToolName = "search_live_data"

// SearchRequest represents the tool input.
type SearchRequest struct {
	Query         string `json:"query" yaml:"query" jsonschema:"title=Query,description=Search query describing what the user is looking for (e.g. 'housing programs for refugees'\\, 'work visa requirements 2025')."`
	TargetCountry string `json:"target_country,omitempty" yaml:"target_country,omitempty" jsonschema:"title=Target Country,description=Optional country to focus the search (e.g. 'Germany'\\, 'Canada')."`
}

// SearchResult represents the tool output.
type SearchResult struct {
	Answer         string        `json:"answer"`
	Sources        []Source      `json:"sources"`
	ScrapedData    []ScrapedItem `json:"scrapedData,omitempty"`
	DataFreshness  string        `json:"dataFreshness"`
	QuotaRemaining int           `json:"quotaRemaining"`
	QuotaUsed      int           `json:"quotaUsed"`
	QuotaLimit     int           `json:"quotaLimit"`
}

// Tool is the quota-gated live search.
type Tool struct {
	name        string
	description string
	provider    Provider
	counter     quota.Counter
	timeout     time.Duration
}

var _ tools.Tool[SearchRequest, SearchResult] = (*Tool)(nil)

// New returns the live search tool. The counter is owned by the caller and
// may be shared between tools.
func New(provider Provider, counter quota.Counter) *Tool {
	return &Tool{
		name: ToolName,
		description: "Search live web data for up-to-date migration resources, visa updates, housing programs, and policy changes. " +
			"This uses a limited monthly quota. Only use it when the user explicitly asks for current information, " +
			"when the cached databases returned no results, or when information must be verified as current.",
		provider: provider,
		counter:  counter,
		timeout:  config.DefaultSearchTimeout,
	}
}

// WithTimeout overrides the search timeout.
func (t *Tool) WithTimeout(d time.Duration) *Tool {
	if d > 0 {
		t.timeout = d
	}
	return t
}

func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) Description() string {
	return t.description
}

func (t *Tool) Parameters() any {
	return schema.Must(reflect.TypeOf(SearchRequest{})).Parameters
}

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	return tools.Invoke(ctx, input, t.Run)
}

// Run executes the search: configuration check, quota reservation, provider
// call, then commit or cancel.
func (t *Tool) Run(ctx context.Context, req *SearchRequest) (*tools.Result[SearchResult], error) {
	if err := t.provider.Ready(); err != nil {
		return tools.Fail[SearchResult](tools.KindNotConfigured, "%s", err.Error()), nil
	}

	preq := &Request{
		Query:         strings.TrimSpace(req.Query),
		TargetCountry: strings.TrimSpace(req.TargetCountry),
	}
	if preq.Query == "" {
		return tools.Fail[SearchResult](tools.KindInvalidInput, "Search query cannot be empty."), nil
	}

	backend := t.counter.Name()
	st, err := t.counter.Reserve(ctx)
	if err != nil {
		if errors.Is(err, quota.ErrExceeded) {
			metricskey.StatsLiveSearchQuotaRejected.IncrCounter(1, backend)
			logger.ContextKV(ctx, xlog.NOTICE,
				"reason", "quota_exceeded",
				"backend", backend,
				"used", st.Used,
				"limit", st.Limit)
			return tools.FailWith[SearchResult](
				tools.NewFailure(tools.KindQuotaExceeded,
					"Live search quota exceeded (%d/%d used). Quota resets in %d days.",
					st.Used, st.Limit, st.DaysUntilReset).
					WithHint("Try searching the cached housing and visa databases instead, or check back next month!").
					WithQuota(st)), nil
		}
		logger.ContextKV(ctx, xlog.ERROR,
			"reason", "quota_check",
			"backend", backend,
			"err", err.Error())
		return tools.Fail[SearchResult](tools.KindQuotaCheckFailed,
			"%s. Please try again.", netutil.Truncate(err.Error(), netutil.MaxDiagnosticLength)), nil
	}

	// the reservation must be settled even if the caller goes away
	settleCtx := context.WithoutCancel(ctx)

	resp, err := t.search(ctx, preq)
	if err != nil {
		if cerr := t.counter.Cancel(settleCtx); cerr != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"reason", "quota_cancel",
				"backend", backend,
				"err", cerr.Error())
		}
		f := t.failure(err)
		logger.ContextKV(ctx, xlog.WARNING,
			"reason", "search",
			"provider", t.provider.Name(),
			"kind", f.Kind,
			"err", err.Error())
		return tools.FailWith[SearchResult](f), nil
	}

	after, err := t.counter.Commit(settleCtx)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"reason", "quota_commit",
			"backend", backend,
			"err", err.Error())
		after = st
		after.Used++
		after.Remaining = max(after.Remaining-1, 0)
	}
	if resp.Quota != nil {
		after = *resp.Quota
	}
	metricskey.StatsLiveSearchQuotaConsumed.IncrCounter(1, backend, t.provider.Name())

	res := &SearchResult{
		Answer:         resp.Answer,
		Sources:        resp.Sources,
		ScrapedData:    resp.ScrapedData,
		DataFreshness:  resp.DataFreshness,
		QuotaRemaining: after.Remaining,
		QuotaUsed:      after.Used,
		QuotaLimit:     after.Limit,
	}
	if res.Sources == nil {
		res.Sources = []Source{}
	}
	if res.DataFreshness == "" {
		res.DataFreshness = "Real-time"
	}
	return tools.OK(res), nil
}

func (t *Tool) search(ctx context.Context, req *Request) (*Response, error) {
	defer metricskey.PerfUpstreamCall.MeasureSince(time.Now(), t.provider.Name())

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.provider.Search(ctx, req)
}

func (t *Tool) failure(err error) *tools.Failure {
	if netutil.IsTimeout(err) {
		return tools.NewFailure(tools.KindTimeout, "Search timed out. Please try a more specific query or try again later.")
	}
	if se, ok := netutil.AsStatusError(err); ok {
		msg := se.Message()
		if msg == "" {
			msg = "Search failed with status " + strconv.Itoa(se.StatusCode)
		}
		return tools.NewFailure(tools.KindUpstreamError, "%s", netutil.Truncate(msg, netutil.MaxDiagnosticLength))
	}
	if errors.Is(err, ErrUpstream) {
		return tools.NewFailure(tools.KindUpstreamError, "%s", netutil.Truncate(err.Error(), netutil.MaxDiagnosticLength))
	}
	return tools.NewFailure(tools.KindUnexpectedFailure,
		"Search failed: %s. Please try again.", netutil.Truncate(err.Error(), netutil.MaxDiagnosticLength))
}
