// Package quota enforces the monthly ceiling on live web searches.
//
// A search takes a reservation before it starts. The reservation is
// committed only when the search succeeds, and cancelled otherwise, so failed
// searches never consume quota. In-flight reservations count against the
// limit, which keeps concurrent searches from overshooting it.
package quota

import (
	"context"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

//go:generate mockgen -source=quota.go -destination=../../mocks/mockquota/quota_mock.gen.go -package mockquota

var logger = xlog.NewPackageLogger("github.com/tmoody1973/tribe-ai", "quota")

// DefaultMonthlyLimit is the default number of live searches per month.
const DefaultMonthlyLimit = 50

var (
	// ErrExceeded is returned by Reserve when the limit has been reached.
	ErrExceeded = errors.New("live search quota exceeded")
	// ErrUnavailable is returned when the quota authority cannot be reached.
	ErrUnavailable = errors.New("quota authority unavailable")
)

// Status is a snapshot of quota usage.
type Status struct {
	Used           int `json:"used"`
	Limit          int `json:"limit"`
	Remaining      int `json:"remaining"`
	DaysUntilReset int `json:"daysUntilReset,omitempty"`
}

// Counter tracks live search usage.
type Counter interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Status returns current usage without changing it.
	Status(ctx context.Context) (Status, error)
	// Reserve claims one unit for an in-flight search.
	// Returns ErrExceeded, with the current status, when no unit is left.
	Reserve(ctx context.Context) (Status, error)
	// Commit converts a reservation into a consumed unit.
	Commit(ctx context.Context) (Status, error)
	// Cancel releases a reservation without consuming it.
	Cancel(ctx context.Context) error
}

func newStatus(used, limit int, now time.Time) Status {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Used:           used,
		Limit:          limit,
		Remaining:      remaining,
		DaysUntilReset: DaysUntilReset(now),
	}
}

// Period returns the monthly accounting period for t, as YYYY-MM in UTC.
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// DaysUntilReset returns the number of days until the next monthly period starts.
func DaysUntilReset(t time.Time) int {
	t = t.UTC()
	next := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(next.Sub(t).Hours() / 24))
}
