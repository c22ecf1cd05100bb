// Package apiclient wraps outbound HTTP calls: it attaches the current
// bearer token, executes the call and performs at most one refresh-and-retry
// cycle on a 401 before surfacing failure.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// TokenSource supplies the current valid bearer token, if any.
type TokenSource interface {
	BearerToken() (string, bool)
}

// Refresher is the coordinator-side contract the client uses to recover from
// a 401 and to force sign-out when recovery fails.
type Refresher interface {
	ForceRefresh(ctx context.Context) (string, error)
	ForceSignOut(ctx context.Context, cause error)
}

// RequestOptions tune a single logical call.
type RequestOptions struct {
	// Headers are merged over the default Content-Type: application/json.
	Headers map[string]string

	// SkipTokenRefresh opts out of bearer injection and of the
	// refresh-and-retry path. Used by calls that must not touch the session,
	// such as the sign-in endpoints themselves.
	SkipTokenRefresh bool
}

// Envelope is the normalized result handed to UI callers.
type Envelope struct {
	IsOk    bool            `json:"isOk"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Client issues authenticated requests against a single API base URL.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenSource
	refresher Refresher
}

type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.http = httpClient
	}
}

func New(baseURL string, tokens TokenSource, refresher Refresher, options ...ClientOption) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		tokens:    tokens,
		refresher: refresher,
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Do executes one logical call. On a 401 (unless opted out) it performs
// exactly one refresh and one retried request; an explicit bounded loop
// makes the termination guarantee structurally obvious. The caller owns the
// returned response body.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts *RequestOptions) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "[Do] encode request body")
		}
		payload = encoded
	}

	requestID := uuid.New().String()
	bearer, haveBearer := "", false
	if !opts.SkipTokenRefresh {
		bearer, haveBearer = c.tokens.BearerToken()
	}

	const maxAttempts = 2 // initial request plus at most one post-refresh retry
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := c.newRequest(ctx, method, path, payload, opts, requestID)
		if err != nil {
			return nil, err
		}
		if haveBearer {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &TransportError{Err: err}
		}

		if resp.StatusCode != http.StatusUnauthorized || opts.SkipTokenRefresh || attempt == maxAttempts {
			return resp, nil
		}
		resp.Body.Close()

		log.Debug().Str("request_id", requestID).Str("path", path).Msg("request unauthorized, refreshing token")
		newToken, refreshErr := c.refresher.ForceRefresh(ctx)
		if refreshErr != nil {
			log.Warn().Str("request_id", requestID).Err(refreshErr).Msg("refresh after 401 failed, signing out")
			c.refresher.ForceSignOut(ctx, ErrSessionExpired)
			return nil, ErrSessionExpired
		}
		bearer, haveBearer = newToken, newToken != ""
	}

	// Unreachable: the loop always returns.
	return nil, errors.New("[Do] retry loop exhausted")
}

// Get issues a GET and normalizes the outcome into an Envelope.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) Envelope {
	return c.envelope(ctx, http.MethodGet, path, nil, opts)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, opts *RequestOptions) Envelope {
	return c.envelope(ctx, http.MethodPost, path, body, opts)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, opts *RequestOptions) Envelope {
	return c.envelope(ctx, http.MethodPut, path, body, opts)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, opts *RequestOptions) Envelope {
	return c.envelope(ctx, http.MethodDelete, path, nil, opts)
}

func (c *Client) envelope(ctx context.Context, method, path string, body any, opts *RequestOptions) Envelope {
	resp, err := c.Do(ctx, method, path, body, opts)
	if err != nil {
		return Envelope{IsOk: false, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return Envelope{IsOk: false, Message: (&TransportError{Err: readErr}).Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		return Envelope{IsOk: false, Message: httpErr.Error()}
	}

	return Envelope{IsOk: true, Data: data}
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte, opts *RequestOptions, requestID string) (*http.Request, error) {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrapf(err, "[newRequest] %s %s", method, path)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}
