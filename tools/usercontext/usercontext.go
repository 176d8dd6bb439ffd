// Package usercontext fetches the user's active tasks and migration progress
// and renders them as a short summary for the orchestrator.
package usercontext

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
	"github.com/tmoody1973/tribe-ai/chatmodel"
	"github.com/tmoody1973/tribe-ai/config"
	"github.com/tmoody1973/tribe-ai/pkg/llmutils"
	"github.com/tmoody1973/tribe-ai/pkg/metricskey"
	"github.com/tmoody1973/tribe-ai/pkg/netutil"
	"github.com/tmoody1973/tribe-ai/pkg/schema"
	"github.com/tmoody1973/tribe-ai/tools"
)

var logger = xlog.NewPackageLogger("github.com/tmoody1973/tribe-ai/tools", "usercontext")

const ToolName = "get_user_context"

// ContextPath is the backend endpoint.
const ContextPath = "/api/user/context"

// maxListed is the number of task titles named in the summary.
const maxListed = 3

// Request represents the tool input.
type Request struct {
	CorridorID string `json:"corridor_id,omitempty" yaml:"corridor_id,omitempty" jsonschema:"title=Corridor ID,description=The active corridor ID from the user's context."`
}

// Todo is an active task.
type Todo struct {
	Title    string `json:"title,omitempty"`
	Column   string `json:"column,omitempty"`
	Priority string `json:"priority,omitempty"`
	Category string `json:"category,omitempty"`
}

// Progress is the protocol completion of the corridor.
type Progress struct {
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Result represents the tool output.
type Result struct {
	Todos    []Todo   `json:"todos"`
	Progress Progress `json:"progress"`
	Summary  string   `json:"summary"`
}

// Tool fetches the user context.
type Tool struct {
	name        string
	description string
	env         config.Env
	siteURLEnv  string
	httpClient  *http.Client
	timeout     time.Duration
}

var _ tools.Tool[Request, Result] = (*Tool)(nil)

// New returns the context tool. The backend URL is read from env on every call.
func New(env config.Env) *Tool {
	return &Tool{
		name: ToolName,
		description: "Fetch the user's current context including active tasks and migration progress. " +
			"Use this to provide personalized, context-aware responses.",
		env:        env,
		siteURLEnv: config.EnvSiteURL,
		httpClient: http.DefaultClient,
		timeout:    config.DefaultContextTimeout,
	}
}

// WithSiteURLEnv names the variable holding the backend base URL.
func (t *Tool) WithSiteURLEnv(name string) *Tool {
	if name != "" {
		t.siteURLEnv = name
	}
	return t
}

func (t *Tool) WithHTTPClient(client *http.Client) *Tool {
	if client != nil {
		t.httpClient = client
	}
	return t
}

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
	return schema.Must(reflect.TypeOf(Request{})).Parameters
}

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	return tools.Invoke(ctx, input, t.Run)
}

// Run fetches the context of the corridor given in the request, or of the
// active corridor of the session.
func (t *Tool) Run(ctx context.Context, req *Request) (*tools.Result[Result], error) {
	corridorID := strings.TrimSpace(req.CorridorID)
	if corridorID == "" {
		corridorID = chatmodel.GetCorridorID(ctx)
	}
	if corridorID == "" {
		return tools.Fail[Result](tools.KindInvalidInput, "No corridor ID provided. User may not have an active corridor."), nil
	}

	base := t.env.BaseURL(t.siteURLEnv)
	if base == "" {
		return tools.Fail[Result](tools.KindNotConfigured, "%s not configured. Cannot fetch user context.", t.siteURLEnv), nil
	}

	body, err := t.fetch(ctx, base, corridorID)
	if err != nil {
		f := failure(err)
		logger.ContextKV(ctx, xlog.WARNING,
			"reason", "fetch",
			"corridor", corridorID,
			"kind", f.Kind,
			"err", err.Error())
		return tools.FailWith[Result](f), nil
	}

	if !gjson.ValidBytes(body) {
		return tools.Fail[Result](tools.KindUnexpectedFailure, "Failed to fetch user context: invalid response"), nil
	}
	js := gjson.ParseBytes(body)
	if llmutils.Truthy(js.Get("error")) {
		msg := js.Get("message").String()
		if msg == "" {
			msg = "Failed to fetch user context"
		}
		return tools.Fail[Result](tools.KindUpstreamError, "%s", msg), nil
	}

	res := parseContext(js)
	res.Summary = Summarize(res.Todos, res.Progress)
	return tools.OK(res), nil
}

// parseContext reads the payload field by field. Scalar todo fields are kept
// as text, structured values are dropped.
func parseContext(js gjson.Result) *Result {
	res := &Result{Todos: []Todo{}}
	js.Get("todos").ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			res.Todos = append(res.Todos, Todo{
				Title:    scalar(v.Get("title")),
				Column:   scalar(v.Get("column")),
				Priority: scalar(v.Get("priority")),
				Category: scalar(v.Get("category")),
			})
		}
		return true
	})

	p := js.Get("progress")
	res.Progress = Progress{
		Completed:  int(p.Get("completed").Int()),
		Total:      int(p.Get("total").Int()),
		Percentage: p.Get("percentage").Float(),
	}
	return res
}

func scalar(v gjson.Result) string {
	switch v.Type {
	case gjson.String, gjson.Number, gjson.True, gjson.False:
		return v.String()
	default:
		return ""
	}
}

func (t *Tool) fetch(ctx context.Context, base, corridorID string) ([]byte, error) {
	defer metricskey.PerfUpstreamCall.MeasureSince(time.Now(), "user_context")

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("corridorId", corridorID)
	return netutil.Do(ctx, t.httpClient, http.MethodGet, base+ContextPath+"?"+q.Encode(), nil)
}

func failure(err error) *tools.Failure {
	if netutil.IsTimeout(err) {
		return tools.NewFailure(tools.KindTimeout, "Request timed out while fetching user context.")
	}
	if se, ok := netutil.AsStatusError(err); ok {
		return tools.NewFailure(tools.KindUpstreamError, "Failed to fetch context: HTTP %d", se.StatusCode)
	}
	return tools.NewFailure(tools.KindUnexpectedFailure,
		"Failed to fetch user context: %s", netutil.Truncate(err.Error(), netutil.MaxDiagnosticLength))
}

// Summarize renders the tasks and progress as two sentences.
func Summarize(todos []Todo, progress Progress) string {
	var sb strings.Builder

	switch n := len(todos); {
	case n == 0:
		sb.WriteString("The user has no active tasks.")
	case n > maxListed:
		fmt.Fprintf(&sb, "The user has %d active tasks including: %s, and more.", n, titles(todos[:maxListed]))
	default:
		fmt.Fprintf(&sb, "The user has %d active task(s): %s.", n, titles(todos))
	}

	sb.WriteString(" ")
	if progress.Total > 0 {
		fmt.Fprintf(&sb, "Migration progress: %d/%d protocols completed (%v%%).",
			progress.Completed, progress.Total, progress.Percentage)
	} else {
		sb.WriteString("No migration protocols have been set up yet.")
	}
	return sb.String()
}

func titles(todos []Todo) string {
	list := make([]string, len(todos))
	for i, t := range todos {
		list[i] = t.Title
		if strings.TrimSpace(list[i]) == "" {
			list[i] = "Untitled"
		}
	}
	return strings.Join(list, ", ")
}
