package quota

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/tmoody1973/tribe-ai/pkg/netutil"
)

// QuotaPath is the endpoint of the remote quota authority.
const QuotaPath = "/api/fireplexity/quota"

// DefaultRemoteTimeout bounds a quota check.
const DefaultRemoteTimeout = 10 * time.Second

// Remote is a Counter that defers to the backend, which counts a search when
// it serves it. Reserve checks availability, Commit re-reads usage and Cancel
// is a no-op.
type Remote struct {
	baseURL    func() string
	httpClient *http.Client
	timeout    time.Duration
}

// NewRemote returns a Counter querying the backend at the URL returned by
// baseURL. The URL is resolved on every call.
func NewRemote(baseURL func() string, httpClient *http.Client) *Remote {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Remote{
		baseURL:    baseURL,
		httpClient: httpClient,
		timeout:    DefaultRemoteTimeout,
	}
}

// WithTimeout overrides the per-call timeout.
func (r *Remote) WithTimeout(d time.Duration) *Remote {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Name returns the backend name.
func (r *Remote) Name() string {
	return "remote"
}

type remoteStatus struct {
	Available      bool `json:"available"`
	Used           int  `json:"used"`
	Limit          int  `json:"limit"`
	Remaining      int  `json:"remaining"`
	DaysUntilReset int  `json:"daysUntilReset"`
}

func (r *Remote) fetch(ctx context.Context) (*remoteStatus, error) {
	base := strings.TrimRight(strings.TrimSpace(r.baseURL()), "/")
	if base == "" {
		return nil, errors.Mark(errors.New("quota endpoint is not configured"), ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := netutil.Do(ctx, r.httpClient, http.MethodGet, base+QuotaPath, nil)
	if err != nil {
		if se, ok := netutil.AsStatusError(err); ok {
			return nil, errors.Mark(errors.Newf("Could not check quota (status %d)", se.StatusCode), ErrUnavailable)
		}
		return nil, errors.Mark(errors.Wrap(err, "Could not check quota"), ErrUnavailable)
	}

	var st remoteStatus
	if err = json.Unmarshal(body, &st); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid quota response"), ErrUnavailable)
	}
	return &st, nil
}

func (s *remoteStatus) status() Status {
	return Status{
		Used:           s.Used,
		Limit:          s.Limit,
		Remaining:      s.Remaining,
		DaysUntilReset: s.DaysUntilReset,
	}
}

// Status returns usage reported by the backend.
func (r *Remote) Status(ctx context.Context) (Status, error) {
	st, err := r.fetch(ctx)
	if err != nil {
		return Status{}, err
	}
	return st.status(), nil
}

// Reserve checks that the backend still has quota available.
func (r *Remote) Reserve(ctx context.Context) (Status, error) {
	st, err := r.fetch(ctx)
	if err != nil {
		return Status{}, err
	}
	if !st.Available {
		return st.status(), errors.WithStack(ErrExceeded)
	}
	return st.status(), nil
}

// Commit returns usage after the backend has counted the search.
func (r *Remote) Commit(ctx context.Context) (Status, error) {
	return r.Status(ctx)
}

// Cancel does nothing: the backend does not count failed searches.
func (r *Remote) Cancel(_ context.Context) error {
	return nil
}
