package chatmodel

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xdb/pkg/flake"
	"github.com/mitchellh/mapstructure"
)

// Corridor is the origin/destination pair the user is migrating along.
type Corridor struct {
	Origin      string `json:"origin,omitempty" mapstructure:"origin"`
	Destination string `json:"destination,omitempty" mapstructure:"destination"`
}

// UserContext is the single, explicit shape of the per-conversation context
// supplied by the agent framework. Every field is optional.
type UserContext struct {
	UserID     string   `json:"userId,omitempty" mapstructure:"userId"`
	CorridorID string   `json:"corridorId,omitempty" mapstructure:"corridorId"`
	Corridor   Corridor `json:"corridor,omitempty" mapstructure:"corridor"`
	Stage      string   `json:"stage,omitempty" mapstructure:"stage"`
	Language   string   `json:"language,omitempty" mapstructure:"language"`
}

// FromProperties adapts the loosely typed properties map sent by the
// framework into UserContext. Unknown keys are ignored.
func FromProperties(props map[string]any) (*UserContext, error) {
	uc := &UserContext{}
	if len(props) == 0 {
		return uc, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           uc,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err = dec.Decode(props); err != nil {
		return nil, errors.Wrap(ErrInvalidUserContext, err.Error())
	}

	uc.Language = strings.ToLower(strings.TrimSpace(uc.Language))
	if uc.Language == "" {
		uc.Language = "en"
	}
	return uc, nil
}

type contextKey int

const (
	keyContext contextKey = iota
	keyInvocation
)

// WithUserContext returns a new context with UserContext value
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, keyContext, uc)
}

// GetUserContext retrieves the UserContext from the context
func GetUserContext(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(keyContext).(*UserContext); ok {
		return v
	}
	return nil
}

// GetCorridorID returns the active corridor ID from the context,
// or an empty string if none is set.
func GetCorridorID(ctx context.Context) string {
	if v := GetUserContext(ctx); v != nil {
		return v.CorridorID
	}
	return ""
}

// NewInvocationID generates a tool invocation ID using the flake ID generator.
func NewInvocationID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}

// WithInvocationID returns a new context carrying the invocation ID.
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyInvocation, id)
}

// GetInvocationID returns the invocation ID from the context, or empty.
func GetInvocationID(ctx context.Context) string {
	id, _ := ctx.Value(keyInvocation).(string)
	return id
}
