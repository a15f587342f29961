package kite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// APIError represents a non-success response from Kite.
type APIError struct {
	StatusCode int
	ErrorType  string
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("kite api error %d (%s): %s", e.StatusCode, e.ErrorType, e.Message)
	}
	return fmt.Sprintf("kite api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsAuth reports an expired or invalid enctoken.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusForbidden || e.ErrorType == "TokenException"
}

type envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	// extra accepted status codes besides 2xx
	accept []int
}

// doRequest performs a single HTTP request and returns the raw body.
func (c *Client) doRequest(ctx context.Context, r request) ([]byte, error) {
	fullURL := c.baseURL + r.path
	if len(r.query) > 0 {
		fullURL += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = strings.NewReader(string(r.body))
	}

	req, err := http.NewRequestWithContext(ctx, r.method, fullURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "enctoken "+c.authToken)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", r.method, r.path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode/100 != 2 && !contains(r.accept, resp.StatusCode) {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
		var env envelope
		if json.Unmarshal(respBody, &env) == nil && env.Message != "" {
			apiErr.Message = env.Message
			apiErr.ErrorType = env.ErrorType
		}
		return nil, apiErr
	}

	return respBody, nil
}

// doWithRetry performs a request with exponential backoff retry.
func (c *Client) doWithRetry(ctx context.Context, r request) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			jitter := backoff/2 + time.Duration(rand.Int63n(int64(backoff)+1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}
			backoff *= 2
		}

		body, err := c.doRequest(ctx, r)
		if err == nil {
			return body, nil
		}

		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, errors.Wrap(lastErr, "max retries exceeded")
}

// call runs the request and decodes the data field of the response envelope
// into out. Only idempotent requests are retried.
func (c *Client) call(ctx context.Context, r request, retry bool, out any) error {
	var (
		body []byte
		err  error
	)
	if retry {
		body, err = c.doWithRetry(ctx, r)
	} else {
		body, err = c.doRequest(ctx, r)
	}
	if err != nil {
		return err
	}

	if len(body) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return errors.Wrapf(err, "unmarshal %s response", r.path)
	}
	if env.Status != "" && env.Status != "success" {
		return &APIError{StatusCode: http.StatusOK, ErrorType: env.ErrorType, Message: env.Message, Body: body}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrapf(err, "unmarshal %s data", r.path)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any, accept ...int) error {
	return c.call(ctx, request{method: http.MethodGet, path: path, query: query, accept: accept}, true, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, retry bool, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}
	return c.call(ctx, request{method: http.MethodPost, path: path, body: b, contentType: "application/json"}, retry, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	r := request{
		method:      http.MethodPost,
		path:        path,
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}
	return c.call(ctx, r, false, out)
}

func contains(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
