package livesearch_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmoody1973/tribe-ai/config"
	"github.com/tmoody1973/tribe-ai/mocks/mockquota"
	"github.com/tmoody1973/tribe-ai/pkg/llmutils"
	"github.com/tmoody1973/tribe-ai/pkg/quota"
	"github.com/tmoody1973/tribe-ai/tools"
	"github.com/tmoody1973/tribe-ai/tools/livesearch"
	"go.uber.org/mock/gomock"
)

func envOf(kv ...string) config.Env {
	m := map[string]string{}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return func(k string) string { return m[k] }
}

type tavilyServer struct {
	*httptest.Server
	hits    atomic.Int32
	queries chan string
}

func newTavilyServer(t *testing.T) *tavilyServer {
	t.Helper()
	s := &tavilyServer{queries: make(chan string, 100)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)

		var req tavilyModels.SearchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		s.queries <- req.Query

		_, _ = w.Write([]byte(`{
			"answer": "Several municipal programs help newcomers find housing.",
			"results": [
				{"title": "Housing for refugees", "url": "https://example.org/housing", "content": "` + strings.Repeat("a", 600) + `", "score": 0.9},
				{"title": "Rent guide", "url": "https://example.org/rent", "content": "short", "score": 0.5}
			]
		}`))
	}))
	t.Cleanup(s.Close)
	return s
}

func newTavilyTool(s *tavilyServer, counter quota.Counter) *livesearch.Tool {
	p := livesearch.NewTavily(envOf(config.EnvTavilyKey, "testkey"), "").
		WithBaseURL(s.URL).
		WithHTTPClient(s.Client())
	return livesearch.New(p, counter)
}

func TestTool_Metadata(t *testing.T) {
	t.Parallel()

	tool := livesearch.New(livesearch.NewTavily(nil, ""), quota.NewMemory(1))
	assert.Equal(t, livesearch.ToolName, tool.Name())
	assert.Contains(t, tool.Description(), "monthly quota")

	params := llmutils.ToJSON(tool.Parameters())
	assert.Contains(t, params, `"target_country"`)
	assert.Contains(t, params, `"required":["query"]`)
}

func TestTavily_Search(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv := newTavilyServer(t)
	counter := quota.NewMemory(2)
	tool := newTavilyTool(srv, counter)

	res, err := tool.Run(ctx, &livesearch.SearchRequest{Query: "housing programs", TargetCountry: "Germany"})
	require.NoError(t, err)
	require.True(t, res.Success(), "%+v", res.Failure)
	assert.Equal(t, "housing programs in Germany", <-srv.queries)

	data := res.Data
	assert.Equal(t, "Several municipal programs help newcomers find housing.", data.Answer)
	assert.Equal(t, []livesearch.Source{
		{URL: "https://example.org/housing", Title: "Housing for refugees"},
		{URL: "https://example.org/rent", Title: "Rent guide"},
	}, data.Sources)
	require.Len(t, data.ScrapedData, 2)
	assert.Equal(t, strings.Repeat("a", 500)+"...", data.ScrapedData[0].Preview)
	assert.Equal(t, "short", data.ScrapedData[1].Preview)
	assert.Equal(t, "Real-time", data.DataFreshness)
	assert.Equal(t, 1, data.QuotaUsed)
	assert.Equal(t, 1, data.QuotaRemaining)
	assert.Equal(t, 2, data.QuotaLimit)

	res, err = tool.Run(ctx, &livesearch.SearchRequest{Query: "rent deposit rules"})
	require.NoError(t, err)
	require.True(t, res.Success())
	assert.Equal(t, "rent deposit rules", <-srv.queries)
	assert.Equal(t, 0, res.Data.QuotaRemaining)

	// the limit is enforced before the network
	res, err = tool.Run(ctx, &livesearch.SearchRequest{Query: "one more"})
	require.NoError(t, err)
	require.False(t, res.Success())
	assert.Equal(t, tools.KindQuotaExceeded, res.Failure.Kind)
	assert.True(t, strings.HasPrefix(res.Failure.Message, "Live search quota exceeded (2/2 used). Quota resets in "))
	assert.Contains(t, res.Failure.Hint, "cached housing and visa databases")
	require.NotNil(t, res.Failure.QuotaStatus)
	assert.Equal(t, 2, res.Failure.QuotaStatus.Used)
	assert.EqualValues(t, 2, srv.hits.Load())
}

func TestTavily_ReadsKeyAtCallTime(t *testing.T) {
	srv := newTavilyServer(t)
	p := livesearch.NewTavily(nil, "").WithBaseURL(srv.URL).WithHTTPClient(srv.Client())
	tool := livesearch.New(p, quota.NewMemory(5))
	ctx := context.Background()

	t.Setenv(config.EnvTavilyKey, "")
	res, err := tool.Run(ctx, &livesearch.SearchRequest{Query: "visa"})
	require.NoError(t, err)
	require.False(t, res.Success())
	assert.Equal(t, tools.KindNotConfigured, res.Failure.Kind)
	assert.Equal(t, "Live search is not configured. TAVILY_API_KEY environment variable is missing.", res.Failure.Message)

	t.Setenv(config.EnvTavilyKey, "late-key")
	res, err = tool.Run(ctx, &livesearch.SearchRequest{Query: "visa"})
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.EqualValues(t, 1, srv.hits.Load())
}

func TestQuotaExceeded_NoNetwork(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ctrl := gomock.NewController(t)
	counter := mockquota.NewMockCounter(ctrl)
	st := quota.Status{Used: 50, Limit: 50, Remaining: 0, DaysUntilReset: 17}
	counter.EXPECT().Name().Return("mock").AnyTimes()
	counter.EXPECT().Reserve(gomock.Any()).Return(st, errors.WithStack(quota.ErrExceeded)).Times(1)

	srv := newTavilyServer(t)
	tool := newTavilyTool(srv, counter)

	out, err := tool.Call(ctx, `{"query":"housing programs"}`)
	require.NoError(t, err)
	assert.EqualValues(t, 0, srv.hits.Load())

	var res tools.Result[livesearch.SearchResult]
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotNil(t, res.Failure)
	assert.Equal(t, tools.KindQuotaExceeded, res.Failure.Kind)
	assert.Equal(t, "Live search quota exceeded (50/50 used). Quota resets in 17 days.", res.Failure.Message)
	assert.Equal(t, &st, res.Failure.QuotaStatus)
}

func TestNotConfigured_NoQuota(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// no counter calls are expected
	ctrl := gomock.NewController(t)
	counter := mockquota.NewMockCounter(ctrl)

	for _, p := range []livesearch.Provider{
		livesearch.NewTavily(envOf(), ""),
		livesearch.NewFireplexity(envOf(), "", nil),
	} {
		res, err := livesearch.New(p, counter).Run(ctx, &livesearch.SearchRequest{Query: "x"})
		require.NoError(t, err)
		require.False(t, res.Success())
		assert.Equal(t, tools.KindNotConfigured, res.Failure.Kind, p.Name())
	}

	tool := livesearch.New(livesearch.NewTavily(envOf(config.EnvTavilyKey, "k"), ""), counter)
	res, err := tool.Run(ctx, &livesearch.SearchRequest{Query: "   "})
	require.NoError(t, err)
	assert.Equal(t, tools.KindInvalidInput, res.Failure.Kind)

	out, err := tool.Call(ctx, "not json")
	require.NoError(t, err)
	assert.Contains(t, out, `"kind":"InvalidInput"`)
}

func TestQuotaCheckFailed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ctrl := gomock.NewController(t)
	counter := mockquota.NewMockCounter(ctrl)
	counter.EXPECT().Name().Return("mock").AnyTimes()
	counter.EXPECT().Reserve(gomock.Any()).
		Return(quota.Status{}, errors.Mark(errors.New("Could not check quota (status 503)"), quota.ErrUnavailable))

	srv := newTavilyServer(t)
	res, err := newTavilyTool(srv, counter).Run(ctx, &livesearch.SearchRequest{Query: "x"})
	require.NoError(t, err)
	require.False(t, res.Success())
	assert.Equal(t, tools.KindQuotaCheckFailed, res.Failure.Kind)
	assert.Equal(t, "Could not check quota (status 503). Please try again.", res.Failure.Message)
	assert.EqualValues(t, 0, srv.hits.Load())
}

// fireplexityBackend serves both the quota and the search endpoints.
type fireplexityBackend struct {
	*httptest.Server
	searches atomic.Int32
	search   http.HandlerFunc
	used     atomic.Int32
	limit    int32
}

func newFireplexityBackend(t *testing.T, search http.HandlerFunc) *fireplexityBackend {
	t.Helper()
	b := &fireplexityBackend{search: search, limit: 50}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case quota.QuotaPath:
			used := b.used.Load()
			_ = json.NewEncoder(w).Encode(map[string]any{
				"available":      used < b.limit,
				"used":           used,
				"limit":          b.limit,
				"remaining":      b.limit - used,
				"daysUntilReset": 17,
			})
		case livesearch.SearchPath:
			b.searches.Add(1)
			b.search(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *fireplexityBackend) tool() *livesearch.Tool {
	env := envOf(config.EnvSiteURL, b.URL+"/")
	base := func() string { return env.BaseURL(config.EnvSiteURL) }
	return livesearch.New(
		livesearch.NewFireplexity(env, "", b.Client()),
		quota.NewRemote(base, b.Client()),
	)
}

func TestFireplexity_Search(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var b *fireplexityBackend
	b = newFireplexityBackend(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "housing programs", req["query"])
		assert.Equal(t, "Canada", req["targetCountry"])

		used := b.used.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"answer":  "Provincial programs exist.",
			"sources": []any{"https://example.ca/a", map[string]any{"url": "https://example.ca/b", "title": "B"}},
			"scrapedData": []any{
				map[string]any{"url": "https://example.ca/a", "title": "A", "markdown": strings.Repeat("é", 501)},
				map[string]any{"url": "https://example.ca/b", "title": "B"},
				map[string]any{"url": "https://example.ca/c", "title": "C", "error": "blocked"},
			},
			"quotaStatus": map[string]any{"used": used, "limit": 50, "remaining": 50 - used},
		})
	})

	res, err := b.tool().Run(ctx, &livesearch.SearchRequest{Query: "housing programs", TargetCountry: "Canada"})
	require.NoError(t, err)
	require.True(t, res.Success(), "%+v", res.Failure)

	exp := &livesearch.SearchResult{
		Answer: "Provincial programs exist.",
		Sources: []livesearch.Source{
			{URL: "https://example.ca/a"},
			{URL: "https://example.ca/b", Title: "B"},
		},
		ScrapedData: []livesearch.ScrapedItem{
			{URL: "https://example.ca/a", Title: "A", Preview: strings.Repeat("é", 500) + "..."},
			{URL: "https://example.ca/b", Title: "B", Preview: "Content available at source"},
		},
		DataFreshness:  "Real-time",
		QuotaRemaining: 49,
		QuotaUsed:      1,
		QuotaLimit:     50,
	}
	if diff := cmp.Diff(exp, res.Data); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	// the success payload survives a JSON round trip
	js, err := json.Marshal(res)
	require.NoError(t, err)
	var back tools.Result[livesearch.SearchResult]
	require.NoError(t, json.Unmarshal(js, &back))
	if diff := cmp.Diff(exp, back.Data); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFireplexity_Failures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("status", func(t *testing.T) {
		b := newFireplexityBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"message":"Perplexity is unavailable"}`))
		})
		res, err := b.tool().Run(ctx, &livesearch.SearchRequest{Query: "x"})
		require.NoError(t, err)
		assert.Equal(t, tools.KindUpstreamError, res.Failure.Kind)
		assert.Equal(t, "Perplexity is unavailable", res.Failure.Message)
		assert.EqualValues(t, 0, b.used.Load())
	})

	t.Run("status_without_message", func(t *testing.T) {
		b := newFireplexityBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(strings.Repeat("x", 1000)))
		})
		res, err := b.tool().Run(ctx, &livesearch.SearchRequest{Query: "x"})
		require.NoError(t, err)
		assert.Equal(t, tools.KindUpstreamError, res.Failure.Kind)
		assert.Equal(t, "Search failed with status 500", res.Failure.Message)
	})

	t.Run("error_body", func(t *testing.T) {
		b := newFireplexityBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error":true,"message":"Quota exceeded for this month"}`))
		})
		res, err := b.tool().Run(ctx, &livesearch.SearchRequest{Query: "x"})
		require.NoError(t, err)
		assert.Equal(t, tools.KindUpstreamError, res.Failure.Kind)
		assert.Equal(t, "Quota exceeded for this month", res.Failure.Message)
	})

	t.Run("invalid_body", func(t *testing.T) {
		b := newFireplexityBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		})
		res, err := b.tool().Run(ctx, &livesearch.SearchRequest{Query: "x"})
		require.NoError(t, err)
		assert.Equal(t, tools.KindUnexpectedFailure, res.Failure.Kind)
		assert.True(t, strings.HasPrefix(res.Failure.Message, "Search failed: "))
	})

	t.Run("quota_unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		env := envOf(config.EnvSiteURL, srv.URL)
		tool := livesearch.New(
			livesearch.NewFireplexity(env, "", srv.Client()),
			quota.NewRemote(func() string { return env.BaseURL(config.EnvSiteURL) }, srv.Client()),
		)
		res, err := tool.Run(ctx, &livesearch.SearchRequest{Query: "x"})
		require.NoError(t, err)
		assert.Equal(t, tools.KindQuotaCheckFailed, res.Failure.Kind)
		assert.Contains(t, res.Failure.Message, "status 503")
	})
}

func TestTimeout_CancelsReservation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	counter := quota.NewMemory(1)
	p := livesearch.NewFireplexity(envOf(config.EnvSiteURL, srv.URL), "", srv.Client())
	tool := livesearch.New(p, counter).WithTimeout(50 * time.Millisecond)

	res, err := tool.Run(ctx, &livesearch.SearchRequest{Query: "x"})
	require.NoError(t, err)
	require.False(t, res.Success())
	assert.Equal(t, tools.KindTimeout, res.Failure.Kind)
	assert.Equal(t, "Search timed out. Please try a more specific query or try again later.", res.Failure.Message)

	st, err := counter.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Used)

	// the released reservation is available again
	_, err = counter.Reserve(ctx)
	require.NoError(t, err)
}

func TestUpstreamFailure_CancelsReservation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ctrl := gomock.NewController(t)
	counter := mockquota.NewMockCounter(ctrl)
	counter.EXPECT().Name().Return("mock").AnyTimes()
	gomock.InOrder(
		counter.EXPECT().Reserve(gomock.Any()).Return(quota.Status{Used: 3, Limit: 50, Remaining: 47}, nil),
		counter.EXPECT().Cancel(gomock.Any()).Return(nil),
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := livesearch.NewFireplexity(envOf(config.EnvSiteURL, srv.URL), "", srv.Client())
	res, err := livesearch.New(p, counter).Run(ctx, &livesearch.SearchRequest{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, tools.KindUpstreamError, res.Failure.Kind)
}

func TestTavily_Failures(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		name   string
		status int
		body   string
		kind   tools.Kind
		prefix string
	}{
		{
			name:   "status",
			status: http.StatusUnauthorized,
			body:   `{"detail":"invalid api key"}`,
			kind:   tools.KindUpstreamError,
			prefix: "tavily: API request failed with status code: 401",
		},
		{
			name:   "undecodable",
			status: http.StatusOK,
			body:   `{"answer": "partial`,
			kind:   tools.KindUnexpectedFailure,
			prefix: "Search failed: tavily: error decoding response",
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			counter := quota.NewMemory(5)
			p := livesearch.NewTavily(envOf(config.EnvTavilyKey, "testkey"), "").
				WithBaseURL(srv.URL).
				WithHTTPClient(srv.Client())
			res, err := livesearch.New(p, counter).Run(ctx, &livesearch.SearchRequest{Query: "x"})
			require.NoError(t, err)
			require.False(t, res.Success())
			assert.Equal(t, tc.kind, res.Failure.Kind)
			assert.True(t, strings.HasPrefix(res.Failure.Message, tc.prefix), res.Failure.Message)

			st, err := counter.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, st.Used)
		})
	}
}

func TestConcurrent_NeverOverAdmits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	const limit = 5
	srv := newTavilyServer(t)
	tool := newTavilyTool(srv, quota.NewMemory(limit))

	var ok, exceeded atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := tool.Run(ctx, &livesearch.SearchRequest{Query: "x"})
			if !assert.NoError(t, err) {
				return
			}
			if res.Success() {
				ok.Add(1)
			} else if res.Failure.Kind == tools.KindQuotaExceeded {
				exceeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, limit, ok.Load())
	assert.EqualValues(t, 20-limit, exceeded.Load())
	assert.EqualValues(t, limit, srv.hits.Load())
}

func TestRequest_Text(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "jobs", (&livesearch.Request{Query: "jobs"}).Text())
	assert.Equal(t, "jobs in Japan", (&livesearch.Request{Query: "jobs", TargetCountry: "Japan"}).Text())
}
