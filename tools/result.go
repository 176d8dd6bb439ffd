package tools

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/tmoody1973/tribe-ai/pkg/quota"
)

// Kind classifies a tool failure.
type Kind string

const (
	// KindNotConfigured means a required credential or endpoint is missing.
	KindNotConfigured Kind = "NotConfigured"
	// KindInvalidInput means the arguments were rejected before any I/O.
	KindInvalidInput Kind = "InvalidInput"
	// KindQuotaExceeded means the monthly live search ceiling was reached.
	KindQuotaExceeded Kind = "QuotaExceeded"
	// KindQuotaCheckFailed means the quota authority could not be consulted.
	KindQuotaCheckFailed Kind = "QuotaCheckFailed"
	// KindUpstreamError means a remote service answered with an error.
	KindUpstreamError Kind = "UpstreamError"
	// KindTimeout means a remote service did not answer in time.
	KindTimeout Kind = "Timeout"
	// KindUnexpectedFailure covers everything else.
	KindUnexpectedFailure Kind = "UnexpectedFailure"
)

// Failure is the payload returned to the orchestrator instead of raising.
type Failure struct {
	Kind        Kind     `json:"kind"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
	// Hint is a recovery hint for the orchestrator.
	Hint        string        `json:"hint,omitempty"`
	QuotaStatus *quota.Status `json:"quotaStatus,omitempty"`
}

// NewFailure returns a Failure of the given kind, with the message formatted
// as fmt.Sprintf does.
func NewFailure(kind Kind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithSuggestions attaches suggestions.
func (f *Failure) WithSuggestions(list ...string) *Failure {
	f.Suggestions = append(f.Suggestions, list...)
	return f
}

// WithHint attaches a recovery hint.
func (f *Failure) WithHint(hint string) *Failure {
	f.Hint = hint
	return f
}

// WithQuota attaches the quota status.
func (f *Failure) WithQuota(st quota.Status) *Failure {
	f.QuotaStatus = &st
	return f
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// MarshalJSON adds the "error": true discriminator.
func (f *Failure) MarshalJSON() ([]byte, error) {
	type failure Failure
	return json.Marshal(struct {
		Error bool `json:"error"`
		failure
	}{true, failure(*f)})
}

// Result is either a Data payload or a Failure.
type Result[T any] struct {
	Data    *T
	Failure *Failure
}

// OK returns a successful result.
func OK[T any](data *T) *Result[T] {
	return &Result[T]{Data: data}
}

// Fail returns a failed result of the given kind.
func Fail[T any](kind Kind, format string, args ...any) *Result[T] {
	return &Result[T]{Failure: NewFailure(kind, format, args...)}
}

// FailWith wraps f in a result.
func FailWith[T any](f *Failure) *Result[T] {
	return &Result[T]{Failure: f}
}

// Success reports whether the result carries data.
func (r *Result[T]) Success() bool {
	return r != nil && r.Failure == nil
}

// MarshalJSON encodes a success as the data object with "success": true,
// and a failure as the Failure object.
func (r *Result[T]) MarshalJSON() ([]byte, error) {
	if r.Failure != nil {
		return json.Marshal(r.Failure)
	}
	js := []byte(`{}`)
	if r.Data != nil {
		var err error
		if js, err = json.Marshal(r.Data); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return sjson.SetBytes(js, "success", true)
}

// UnmarshalJSON decodes either form.
func (r *Result[T]) UnmarshalJSON(js []byte) error {
	if !gjson.ValidBytes(js) {
		return errors.New("invalid result JSON")
	}
	if gjson.GetBytes(js, "error").Bool() {
		f := new(Failure)
		if err := json.Unmarshal(js, f); err != nil {
			return errors.WithStack(err)
		}
		r.Data, r.Failure = nil, f
		return nil
	}
	data := new(T)
	if err := json.Unmarshal(js, data); err != nil {
		return errors.WithStack(err)
	}
	r.Data, r.Failure = data, nil
	return nil
}
