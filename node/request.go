package node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdexio/chain-collector/common/logging"
	httpUtils "github.com/mcdexio/chain-collector/utils/http"
)

const (
	maxAttempts = 3
	retryDelay  = 200 * time.Millisecond
)

// errNotFound marks a response the node answers for missing data. Public methods turn it into
// a nil result.
var errNotFound = errors.New("not found")

// StatusError is a non-2xx answer that is not a not-found.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Path, e.Code, e.Body)
}

func isNotFound(code int, body []byte) bool {
	if code == http.StatusNotFound {
		return true
	}
	return code >= 400 && bytes.Contains(bytes.ToLower(body), []byte("not found"))
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return !errors.Is(err, errNotFound) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// getJSON fetches path and returns the body, retrying transport failures and 5xx answers.
func getJSON(ctx context.Context, logger logging.Logger, client httpUtils.IHttpClient, path string, params []httpUtils.KeyValue) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		code, body, err := client.Get(ctx, path, params)
		switch {
		case err != nil:
			lastErr = err
		case isNotFound(code, body):
			return nil, errNotFound
		case code/100 != 2:
			lastErr = &StatusError{Path: path, Code: code, Body: truncate(body, 256)}
		default:
			return body, nil
		}
		if !retryable(lastErr) || attempt == maxAttempts {
			break
		}
		logger.Warn("get %s failed (attempt %d/%d): %v", path, attempt, maxAttempts, lastErr)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay * time.Duration(attempt)):
		}
	}
	return nil, lastErr
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// lcdResult is the legacy LCD envelope.
type lcdResult struct {
	Height string          `json:"height"`
	Result json.RawMessage `json:"result"`
}

func unwrap(body []byte, out interface{}) error {
	var env lcdResult
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Result) == 0 {
		return fmt.Errorf("empty result")
	}
	return json.Unmarshal(env.Result, out)
}
