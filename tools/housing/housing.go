// Package housing searches the cached directory of housing assistance
// programs for migrants and refugees.
package housing

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/effective-security/xlog"
	"github.com/tmoody1973/tribe-ai/pkg/country"
	"github.com/tmoody1973/tribe-ai/pkg/quota"
	"github.com/tmoody1973/tribe-ai/pkg/schema"
	"github.com/tmoody1973/tribe-ai/tools"
)

var logger = xlog.NewPackageLogger("github.com/tmoody1973/tribe-ai/tools", "housing")

const ToolName = "search_housing_resources"

// MaxResults caps the returned records.
const MaxResults = 10

// SearchRequest represents the tool input. All filters are optional.
type SearchRequest struct {
	Country      string `json:"country,omitempty" yaml:"country,omitempty" jsonschema:"title=Country,description=Destination country name or code (e.g. 'United States'\\, 'Canada'\\, 'DEU'). Case-insensitive\\, partial match supported."`
	Continent    string `json:"continent,omitempty" yaml:"continent,omitempty" jsonschema:"title=Continent,description=Continent filter (e.g. 'North America'\\, 'Europe'\\, 'Asia'). Case-insensitive."`
	ResourceType string `json:"resource_type,omitempty" yaml:"resource_type,omitempty" jsonschema:"title=Resource Type,description=Type of resource (e.g. 'Government Agency'\\, 'NGO'\\, 'Online Platform'). Case-insensitive\\, partial match supported."`
}

// Record is a single housing resource in the result.
type Record struct {
	Country      string   `json:"country"`
	Continent    string   `json:"continent"`
	Organization string   `json:"organization"`
	URL          string   `json:"url"`
	Description  string   `json:"description"`
	Type         string   `json:"type"`
	Services     []string `json:"services"`
}

// Suggestion proposes escalating to the live search.
type Suggestion struct {
	Message     string `json:"message"`
	Action      string `json:"action"`
	ActionLabel string `json:"actionLabel"`
	Note        string `json:"note"`
}

// SearchResult represents the tool output.
type SearchResult struct {
	TotalFound int         `json:"totalFound"`
	Results    []*Record   `json:"results"`
	Metadata   Metadata    `json:"metadata"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
}

// Tool searches the housing dataset.
type Tool struct {
	name        string
	description string
	dataset     *Dataset
	quotaLimit  int
}

var _ tools.Tool[SearchRequest, SearchResult] = (*Tool)(nil)

// Option configures the Tool.
type Option func(*Tool)

// WithDataset uses ds instead of the bundled dataset.
func WithDataset(ds *Dataset) Option {
	return func(t *Tool) {
		t.dataset = ds
	}
}

// WithDatasetPath loads the dataset from path. A load failure leaves the
// tool with an empty dataset.
func WithDatasetPath(path string) Option {
	return func(t *Tool) {
		t.dataset = LoadOrEmpty(path)
	}
}

// WithQuotaLimit sets the live search limit disclosed in suggestions.
func WithQuotaLimit(limit int) Option {
	return func(t *Tool) {
		if limit > 0 {
			t.quotaLimit = limit
		}
	}
}

// New returns the housing tool, loading the bundled dataset unless an
// option provides another one.
func New(opts ...Option) *Tool {
	t := &Tool{
		name: ToolName,
		description: "Search for housing resources and assistance programs for migrants and refugees. " +
			"Use this when users ask about finding housing, shelter, accommodation, or housing assistance in a specific country or region.",
		quotaLimit: quota.DefaultMonthlyLimit,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.dataset == nil {
		t.dataset = LoadOrEmpty("")
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

// Dataset returns the loaded dataset.
func (t *Tool) Dataset() *Dataset {
	return t.dataset
}

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	return tools.Invoke(ctx, input, t.Run)
}

// Run filters the dataset. Filters are conjunctive.
func (t *Tool) Run(ctx context.Context, req *SearchRequest) (*tools.Result[SearchResult], error) {
	countryQuery := strings.TrimSpace(req.Country)
	continent := strings.ToLower(strings.TrimSpace(req.Continent))
	resourceType := strings.ToLower(strings.TrimSpace(req.ResourceType))

	entries := t.dataset.Resources
	if countryQuery != "" {
		entries = filter(entries, countryMatcher(countryQuery))
	}
	if continent != "" {
		entries = filter(entries, func(e *CountryEntry) bool {
			return strings.Contains(strings.ToLower(e.Continent), continent)
		})
	}

	var found []*Record
	for _, e := range entries {
		for _, r := range e.Resources {
			if r == nil {
				continue
			}
			if resourceType != "" && !strings.Contains(strings.ToLower(r.ResourceType), resourceType) {
				continue
			}
			found = append(found, newRecord(e, r))
		}
	}

	res := &SearchResult{
		TotalFound: len(found),
		Results:    make([]*Record, 0, min(len(found), MaxResults)),
		Metadata:   t.dataset.Metadata,
	}
	res.Results = append(res.Results, found[:min(len(found), MaxResults)]...)

	if len(found) == 0 && countryQuery != "" {
		res.Suggestion = &Suggestion{
			Message:     fmt.Sprintf("No housing resources found in our database for %s. Would you like me to search for the latest programs?", countryQuery),
			Action:      "searchLiveData",
			ActionLabel: "Search Live Data",
			Note:        fmt.Sprintf("Uses 1 of %d monthly live searches", t.quotaLimit),
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"country", countryQuery,
		"continent", continent,
		"type", resourceType,
		"found", len(found))

	return tools.OK(res), nil
}

// countryMatcher matches a name substring or an exact code. A known ISO3
// code also matches the entry named after it, for datasets without codes.
// Other aliases, like "uk" or "de", are not resolved.
func countryMatcher(query string) func(*CountryEntry) bool {
	q := strings.ToLower(query)
	var name string
	if len(query) == 3 {
		name, _ = country.Lookup(strings.ToUpper(query))
	}

	return func(e *CountryEntry) bool {
		switch {
		case strings.Contains(strings.ToLower(e.Country), q):
			return true
		case e.CountryCode != "" && strings.EqualFold(e.CountryCode, query):
			return true
		case name != "" && strings.EqualFold(e.Country, name):
			return true
		}
		return false
	}
}

func filter(list []*CountryEntry, keep func(*CountryEntry) bool) []*CountryEntry {
	var res []*CountryEntry
	for _, e := range list {
		if e != nil && keep(e) {
			res = append(res, e)
		}
	}
	return res
}

func newRecord(e *CountryEntry, r *Resource) *Record {
	rec := &Record{
		Country:      e.Country,
		Continent:    e.Continent,
		Organization: r.OrganizationName,
		URL:          r.URL,
		Description:  r.Description,
		Type:         r.ResourceType,
		Services:     r.Services,
	}
	if rec.Organization == "" {
		rec.Organization = "Unknown"
	}
	if rec.Type == "" {
		rec.Type = "Unknown"
	}
	if rec.Services == nil {
		rec.Services = []string{}
	}
	return rec
}
