package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// httpStatusError is a non-2xx answer from the Gemini API. Status is the
// google.rpc code name (e.g. RESOURCE_EXHAUSTED) when the body carried one.
type httpStatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *httpStatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("Code %d %s: %s", e.Code, e.Status, e.Body)
	}
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

// apiErrorEnvelope is the error body returned by generativelanguage.googleapis.com.
type apiErrorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func newHTTPStatusError(code int, body []byte) *httpStatusError {
	he := &httpStatusError{Code: code, Body: strings.TrimSpace(string(body))}

	var env apiErrorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		he.Body = env.Error.Message
		he.Status = env.Error.Status
	}
	return he
}

func (g *GeminiExtractor) newRequest(
	ctx context.Context,
	method string,
	url string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("x-goog-api-key", g.apiKey)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (g *GeminiExtractor) do(req *http.Request) (*http.Response, error) {
	resp, err := g.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, newHTTPStatusError(resp.StatusCode, b)
	}
	return resp, nil
}

// doWithRetry retries transient failures (network errors, 429 and 5xx) with
// exponential backoff while respecting context cancellation. With
// maxAttempts <= 1 a failure is returned straight to the capture flow, which
// leaves retrying to the driver.
func (g *GeminiExtractor) doWithRetry(
	ctx context.Context,
	makeReq func() (*http.Request, error),
) (*http.Response, error) {
	maxAttempts := max(g.maxAttempts, 1)
	backoff := 200 * time.Millisecond

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := g.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case 429, 500, 502, 503, 504:
				retry = true
			}
		}

		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	return nil, lastErr
}
