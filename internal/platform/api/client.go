// Package api is the REST client core. All backend calls go through it: it
// attaches the bearer token, maps response failures onto the client error
// taxonomy, and retries reads (never writes) once on transient failure.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const apiPrefix = "/api/v1"

// TokenSource supplies the bearer token and receives authorization-failure
// notifications. Satisfied by *identity.Store.
type TokenSource interface {
	Token() string
	HandleAuthFailure()
}

// Client wraps a resty client configured for the clinical backend.
type Client struct {
	http   *resty.Client
	tokens TokenSource
	logger zerolog.Logger
}

// New builds a Client rooted at baseURL's versioned prefix.
func New(baseURL string, timeout time.Duration, tokens TokenSource, logger zerolog.Logger) *Client {
	c := &Client{
		tokens: tokens,
		logger: logger,
	}

	httpClient := resty.New().
		SetBaseURL(baseURL + apiPrefix).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(1).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// One automatic retry, reads only.
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if token := tokens.Token(); token != "" {
			req.SetAuthToken(token)
		}
		return nil
	})

	c.http = httpClient
	return c
}

// Get fetches path into result.
func (c *Client) Get(ctx context.Context, path string, query map[string]string, result any) error {
	req := c.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Get(path)
	return c.check(resp, err)
}

// Post sends body to path, decoding into result when non-nil.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Post(path)
	return c.check(resp, err)
}

// Put sends body to path, decoding into result when non-nil.
func (c *Client) Put(ctx context.Context, path string, body, result any) error {
	req := c.http.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Put(path)
	return c.check(resp, err)
}

// Delete issues a DELETE to path.
func (c *Client) Delete(ctx context.Context, path string) error {
	resp, err := c.http.R().SetContext(ctx).Delete(path)
	return c.check(resp, err)
}

// Upload posts a multipart form with the standard file/file_type fields.
func (c *Client) Upload(ctx context.Context, path, fileName string, file io.Reader, fileType string, result any) error {
	req := c.http.R().SetContext(ctx).
		SetFileReader("file", fileName, file).
		SetFormData(map[string]string{"file_type": fileType})
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Post(path)
	return c.check(resp, err)
}

// errorEnvelope is the backend's error body: "detail" is either a plain
// string or a list of {loc, msg} validation entries.
type errorEnvelope struct {
	Detail json.RawMessage `json:"detail"`
}

func (c *Client) check(resp *resty.Response, err error) error {
	if err != nil {
		c.logger.Warn().Err(err).Msg("request failed")
		return &TransientError{Err: err}
	}
	status := resp.StatusCode()
	if status < http.StatusBadRequest {
		return nil
	}

	c.logger.Debug().
		Int("status", status).
		Str("method", resp.Request.Method).
		Str("url", resp.Request.URL).
		Msg("backend returned error status")

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		// Identity loss: force re-entry to the login boundary before any
		// further protected action.
		c.tokens.HandleAuthFailure()
		return &AuthError{StatusCode: status, Message: detailString(resp.Body())}
	case status >= http.StatusInternalServerError:
		return &TransientError{Err: fmt.Errorf("backend returned status %d", status)}
	}

	if fields, ok := detailFields(resp.Body()); ok {
		return &ValidationError{Fields: fields}
	}
	return &APIError{StatusCode: status, Message: detailString(resp.Body())}
}

func detailFields(body []byte) ([]FieldError, bool) {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Detail == nil {
		return nil, false
	}
	var fields []FieldError
	if err := json.Unmarshal(env.Detail, &fields); err != nil || len(fields) == 0 {
		return nil, false
	}
	return fields, true
}

func detailString(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Detail != nil {
		var msg string
		if err := json.Unmarshal(env.Detail, &msg); err == nil {
			return msg
		}
		if fields, ok := detailFields(body); ok {
			return (&ValidationError{Fields: fields}).Error()
		}
	}
	if len(body) > 0 {
		return string(body)
	}
	return ""
}
