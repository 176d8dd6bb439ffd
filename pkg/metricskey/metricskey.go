package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool", "kind"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total calls to unknown tools",
		RequiredTags: []string{"tool"},
	}

	StatsLiveSearchQuotaConsumed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_live_search_quota_consumed",
		Help:         "stats_live_search_quota_consumed provides total live searches counted against the quota",
		RequiredTags: []string{"backend", "provider"},
	}

	StatsLiveSearchQuotaRejected = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_live_search_quota_rejected",
		Help:         "stats_live_search_quota_rejected provides total live searches rejected by the quota",
		RequiredTags: []string{"backend"},
	}

	StatsDatasetLoadFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_dataset_load_failed",
		Help:         "stats_dataset_load_failed provides total failures to load a cached dataset",
		RequiredTags: []string{"dataset"},
	}

	StatsEnrichmentFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_enrichment_failed",
		Help:         "stats_enrichment_failed provides total best-effort lookups that failed",
		RequiredTags: []string{"tool"},
	}
)

// Perf
var (
	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}

	PerfUpstreamCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_upstream_call",
		Help:         "perf_upstream_call provides duration of calls to remote services",
		RequiredTags: []string{"service"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfToolCall,
	&PerfUpstreamCall,
	&StatsDatasetLoadFailed,
	&StatsEnrichmentFailed,
	&StatsLiveSearchQuotaConsumed,
	&StatsLiveSearchQuotaRejected,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
}
