package spotify

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
)

// RateLimitError reports an HTTP 429 from the catalog service.
// RetryAfter is zero when the response carried no usable Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("spotify rate limited, retry after %s", e.RetryAfter)
	}
	return "spotify rate limited"
}

// AsRateLimit extracts a RateLimitError from err. A decoded API error with
// status 429 counts as well, without a retry hint.
func AsRateLimit(err error) (*RateLimitError, bool) {
	if err == nil {
		return nil, false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests {
		return &RateLimitError{}, true
	}
	var apiErrPtr *spotify.Error
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && apiErrPtr.Status == http.StatusTooManyRequests {
		return &RateLimitError{}, true
	}
	return nil, false
}

// rateLimitTransport turns 429 responses into *RateLimitError so callers see
// the server's Retry-After value instead of a decoded body.
type rateLimitTransport struct {
	base http.RoundTripper
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Unparseable or past
// values yield zero.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
