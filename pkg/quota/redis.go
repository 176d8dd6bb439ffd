package quota

import (
	"context"
	"path"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// The Redis counter shares one monthly ceiling across processes.
// The keys namespace is organized as follows:
// - `/<prefix>/quota/<YYYY-MM>/used` for consumed searches in the period
// - `/<prefix>/quota/<YYYY-MM>/pending` for in-flight reservations
// Pending reservations expire so a crashed caller cannot hold a unit forever.

const (
	usedTTL    = 40 * 24 * time.Hour
	pendingTTL = 5 * time.Minute
)

var reserveScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
local pending = tonumber(redis.call('GET', KEYS[2]) or '0')
if used + pending >= tonumber(ARGV[1]) then
	return {0, used}
end
redis.call('INCR', KEYS[2])
redis.call('EXPIRE', KEYS[2], ARGV[2])
return {1, used}
`)

var commitScript = redis.NewScript(`
local pending = tonumber(redis.call('GET', KEYS[2]) or '0')
if pending > 0 then
	redis.call('DECR', KEYS[2])
end
local used = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[1])
return used
`)

var cancelScript = redis.NewScript(`
local pending = tonumber(redis.call('GET', KEYS[1]) or '0')
if pending > 0 then
	return redis.call('DECR', KEYS[1])
end
return 0
`)

// Redis is a Counter backed by Redis.
type Redis struct {
	client redis.UniversalClient
	prefix string
	limit  int
	now    func() time.Time
}

// NewRedis returns a Counter storing usage under prefix.
func NewRedis(client redis.UniversalClient, prefix string, limit int) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		limit:  limit,
		now:    time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (r *Redis) WithClock(now func() time.Time) *Redis {
	r.now = now
	return r
}

// Name returns the backend name.
func (r *Redis) Name() string {
	return "redis"
}

func (r *Redis) keys(now time.Time) (used, pending string) {
	base := path.Join(r.prefix, "quota", Period(now))
	return path.Join(base, "used"), path.Join(base, "pending")
}

// Status returns current usage.
func (r *Redis) Status(ctx context.Context) (Status, error) {
	now := r.now()
	usedKey, _ := r.keys(now)
	used, err := r.client.Get(ctx, usedKey).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Status{}, r.unavailable(ctx, "get", err)
	}
	return newStatus(used, r.limit, now), nil
}

// Reserve claims a unit for an in-flight search.
func (r *Redis) Reserve(ctx context.Context) (Status, error) {
	now := r.now()
	usedKey, pendingKey := r.keys(now)
	res, err := reserveScript.Run(ctx, r.client,
		[]string{usedKey, pendingKey},
		r.limit, int(pendingTTL/time.Second)).Int64Slice()
	if err != nil {
		return Status{}, r.unavailable(ctx, "reserve", err)
	}
	if len(res) != 2 {
		return Status{}, errors.Mark(errors.Newf("unexpected reserve reply: %v", res), ErrUnavailable)
	}
	st := newStatus(int(res[1]), r.limit, now)
	if res[0] == 0 {
		return st, errors.WithStack(ErrExceeded)
	}
	return st, nil
}

// Commit consumes a reserved unit.
func (r *Redis) Commit(ctx context.Context) (Status, error) {
	now := r.now()
	usedKey, pendingKey := r.keys(now)
	used, err := commitScript.Run(ctx, r.client,
		[]string{usedKey, pendingKey},
		int(usedTTL/time.Second)).Int64()
	if err != nil {
		return Status{}, r.unavailable(ctx, "commit", err)
	}
	return newStatus(int(used), r.limit, now), nil
}

// Cancel releases a reserved unit.
func (r *Redis) Cancel(ctx context.Context) error {
	_, pendingKey := r.keys(r.now())
	if err := cancelScript.Run(ctx, r.client, []string{pendingKey}).Err(); err != nil {
		return r.unavailable(ctx, "cancel", err)
	}
	return nil
}

func (r *Redis) unavailable(ctx context.Context, op string, err error) error {
	logger.ContextKV(ctx, xlog.ERROR, "reason", "redis", "op", op, "err", err.Error())
	return errors.Mark(errors.Wrapf(err, "quota %s failed", op), ErrUnavailable)
}
