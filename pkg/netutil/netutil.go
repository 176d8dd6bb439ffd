// Package netutil contains the small HTTP plumbing shared by the remote tool
// clients: JSON request/response handling, timeout classification and
// diagnostic truncation.
package netutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/tmoody1973/tribe-ai", "netutil")

// MaxDiagnosticLength caps upstream error excerpts carried in failures.
const MaxDiagnosticLength = 200

// maxBodySize guards against oversized upstream responses.
const maxBodySize = 4 << 20

// StatusError is returned by Do for a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, Truncate(string(e.Body), MaxDiagnosticLength))
}

// Message returns the upstream "message" field when the body is a JSON
// object carrying one.
func (e *StatusError) Message() string {
	var m struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(e.Body, &m) == nil {
		return m.Message
	}
	return ""
}

// Do sends a request with an optional JSON body and returns the raw response body.
// The request is bound to ctx; callers set the deadline.
func Do(ctx context.Context, client *http.Client, method, url string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		js, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal request")
		}
		body = bytes.NewReader(js)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.ContextKV(ctx, xlog.DEBUG, "reason", "close_body", "url", url, "err", cerr.Error())
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return data, &StatusError{StatusCode: resp.StatusCode, Body: data}
	}
	return data, nil
}

// IsTimeout reports whether err was caused by a deadline or a network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// AsStatusError returns the StatusError in err's chain, if any.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
