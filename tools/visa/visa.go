// Package visa looks up visa requirements between two countries through the
// backend visa service.
package visa

import (
	"context"
	"net/http"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
	"github.com/tmoody1973/tribe-ai/config"
	"github.com/tmoody1973/tribe-ai/pkg/country"
	"github.com/tmoody1973/tribe-ai/pkg/llmutils"
	"github.com/tmoody1973/tribe-ai/pkg/metricskey"
	"github.com/tmoody1973/tribe-ai/pkg/netutil"
	"github.com/tmoody1973/tribe-ai/pkg/schema"
	"github.com/tmoody1973/tribe-ai/tools"
)

var logger = xlog.NewPackageLogger("github.com/tmoody1973/tribe-ai/tools", "visa")

const ToolName = "search_visa_options"

// Backend endpoints.
const (
	RequirementsPath    = "/api/visa/requirements"
	ProcessingTimesPath = "/api/visa/processing-times"
)

// SearchRequest represents the tool input.
type SearchRequest struct {
	Origin             string `json:"origin" yaml:"origin" jsonschema:"title=Origin,description=Origin country (passport country). Full name like 'Nigeria' or ISO 3166-1 alpha-3 code like 'NGA'."`
	Destination        string `json:"destination" yaml:"destination" jsonschema:"title=Destination,description=Destination country. Full name like 'Canada' or ISO 3166-1 alpha-3 code like 'CAN'."`
	GetProcessingTimes bool   `json:"get_processing_times,omitempty" yaml:"get_processing_times,omitempty" jsonschema:"title=Processing Times,description=Whether to fetch processing time estimates. This uses additional API quota."`
}

// ProcessingTime is the processing time estimate.
type ProcessingTime struct {
	AverageDays *float64 `json:"averageDays"`
	Source      string   `json:"source"`
	Cached      bool     `json:"cached"`
}

// SearchResult represents the tool output.
type SearchResult struct {
	Origin         string          `json:"origin"`
	Destination    string          `json:"destination"`
	VisaRequired   bool            `json:"visaRequired"`
	VisaType       string          `json:"visaType"`
	StayDuration   string          `json:"stayDuration"`
	Requirements   []string        `json:"requirements"`
	EstimatedCost  *string         `json:"estimatedCost,omitempty"`
	Cached         bool            `json:"cached"`
	QuotaRemaining *int            `json:"quotaRemaining,omitempty"`
	ProcessingTime *ProcessingTime `json:"processingTime,omitempty"`
}

// Tool looks up visa requirements.
type Tool struct {
	name        string
	description string
	env         config.Env
	siteURLEnv  string
	httpClient  *http.Client
	timeout     time.Duration
}

var _ tools.Tool[SearchRequest, SearchResult] = (*Tool)(nil)

// Option configures the Tool.
type Option func(*Tool)

// WithSiteURLEnv names the variable holding the backend base URL.
func WithSiteURLEnv(name string) Option {
	return func(t *Tool) {
		if name != "" {
			t.siteURLEnv = name
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Tool) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// WithTimeout bounds each backend call.
func WithTimeout(d time.Duration) Option {
	return func(t *Tool) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// New returns the visa tool. The backend URL is read from env on every call.
func New(env config.Env, opts ...Option) *Tool {
	t := &Tool{
		name: ToolName,
		description: "Discover visa requirements and pathways for migration between countries. " +
			"Use this when users ask about visa requirements, work permits, or immigration options between specific countries.",
		env:        env,
		siteURLEnv: config.EnvSiteURL,
		httpClient: http.DefaultClient,
		timeout:    config.DefaultVisaTimeout,
	}
	for _, opt := range opts {
		opt(t)
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

func (t *Tool) Run(ctx context.Context, req *SearchRequest) (*tools.Result[SearchResult], error) {
	base := t.env.BaseURL(t.siteURLEnv)
	if base == "" {
		return tools.Fail[SearchResult](tools.KindNotConfigured,
			"Visa search is not configured. %s environment variable is missing.", t.siteURLEnv), nil
	}

	origin, err := country.Normalize(req.Origin)
	if err != nil {
		return tools.FailWith[SearchResult](invalidCountry("origin", req.Origin, err)), nil
	}
	destination, err := country.Normalize(req.Destination)
	if err != nil {
		return tools.FailWith[SearchResult](invalidCountry("destination", req.Destination, err)), nil
	}

	body, err := t.post(ctx, base+RequirementsPath, "visa_requirements", map[string]string{
		"origin":      origin,
		"destination": destination,
	})
	if err != nil {
		f := failure(err)
		logger.ContextKV(ctx, xlog.WARNING,
			"reason", "requirements",
			"origin", origin,
			"destination", destination,
			"kind", f.Kind,
			"err", err.Error())
		return tools.FailWith[SearchResult](f), nil
	}

	js := gjson.ParseBytes(body)
	if llmutils.Truthy(js.Get("error")) {
		msg := js.Get("message").String()
		if msg == "" {
			msg = "Visa lookup failed"
		}
		return tools.Fail[SearchResult](tools.KindUpstreamError, "%s", msg), nil
	}

	res := parseRequirements(js)
	res.Origin = origin
	res.Destination = destination

	if req.GetProcessingTimes && res.VisaType != "" && res.VisaType != "Unknown" {
		pt, perr := t.processingTime(ctx, base, res)
		if perr != nil {
			metricskey.StatsEnrichmentFailed.IncrCounter(1, t.name)
			logger.ContextKV(ctx, xlog.WARNING,
				"reason", "processing_times",
				"origin", origin,
				"destination", destination,
				"err", perr.Error())
		}
		res.ProcessingTime = pt
	}

	return tools.OK(res), nil
}

func invalidCountry(field, input string, err error) *tools.Failure {
	f := tools.NewFailure(tools.KindInvalidInput, "Invalid %s country: %s", field, err.Error())
	if list := country.Suggest(input); len(list) > 0 {
		f.WithSuggestions(list...)
	}
	return f
}

func parseRequirements(js gjson.Result) *SearchResult {
	res := &SearchResult{
		VisaRequired: true,
		VisaType:     "Unknown",
		StayDuration: "Varies",
		Requirements: []string{},
		Cached:       js.Get("cached").Bool(),
	}
	if v := js.Get("visaRequired"); v.Exists() && v.Type != gjson.Null {
		res.VisaRequired = v.Bool()
	}
	if v := js.Get("visaType"); v.Exists() && v.Type != gjson.Null {
		res.VisaType = v.String()
	}
	if v := js.Get("stayDuration"); v.Exists() && v.Type != gjson.Null {
		res.StayDuration = v.String()
	}
	js.Get("requirements").ForEach(func(_, v gjson.Result) bool {
		res.Requirements = append(res.Requirements, v.String())
		return true
	})

	// the backend has used both names for the cost
	if v := js.Get("cost"); llmutils.Truthy(v) {
		res.EstimatedCost = ptr(v.String())
	} else if v := js.Get("estimatedCost"); v.Exists() && v.Type != gjson.Null {
		res.EstimatedCost = ptr(v.String())
	}

	if v := js.Get("quotaRemaining"); v.Type == gjson.Number {
		res.QuotaRemaining = ptr(int(v.Int()))
	}
	return res
}

// processingTime is best effort: a nil estimate is returned on any failure.
func (t *Tool) processingTime(ctx context.Context, base string, res *SearchResult) (*ProcessingTime, error) {
	body, err := t.post(ctx, base+ProcessingTimesPath, "visa_processing_times", map[string]string{
		"origin":      res.Origin,
		"destination": res.Destination,
		"visaType":    res.VisaType,
	})
	if err != nil {
		return nil, err
	}

	js := gjson.ParseBytes(body)
	days := js.Get("averageProcessingDays")
	if !llmutils.Truthy(js.Get("success")) && !llmutils.Truthy(days) {
		return nil, nil
	}

	pt := &ProcessingTime{
		Source: js.Get("source").String(),
		Cached: js.Get("cached").Bool(),
	}
	if days.Type == gjson.Number {
		pt.AverageDays = ptr(days.Float())
	}
	if pt.Source == "" {
		pt.Source = "estimated"
	}
	return pt, nil
}

func (t *Tool) post(ctx context.Context, url, service string, in any) ([]byte, error) {
	defer metricskey.PerfUpstreamCall.MeasureSince(time.Now(), service)

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body, err := netutil.Do(ctx, t.httpClient, http.MethodPost, url, in)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.Newf("invalid response: %s", netutil.Truncate(string(body), netutil.MaxDiagnosticLength))
	}
	return body, nil
}

func failure(err error) *tools.Failure {
	if netutil.IsTimeout(err) {
		return tools.NewFailure(tools.KindTimeout, "Request timed out. Please try again.")
	}
	if se, ok := netutil.AsStatusError(err); ok {
		msg := se.Message()
		if msg == "" {
			return tools.NewFailure(tools.KindUpstreamError, "Request failed with status %d", se.StatusCode)
		}
		return tools.NewFailure(tools.KindUpstreamError, "%s", msg)
	}
	return tools.NewFailure(tools.KindUnexpectedFailure,
		"Failed to fetch visa information: %s", netutil.Truncate(err.Error(), netutil.MaxDiagnosticLength))
}

func ptr[T any](v T) *T {
	return &v
}
