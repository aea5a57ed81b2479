// Package crmclient is the Go client for the records API. It speaks the
// wire shapes the server renders, folds bare-array list responses into the
// envelope form, and classifies failures so batch runners can tell a
// throttled run from a broken one.
package crmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultRetries       = 2
	defaultRetryInterval = 500 * time.Millisecond
	maxErrorBody         = 64 * 1024

	contentTypeJSON = "application/json"

	apiPrefix = "/crm/api/records"
)

// Client talks to one records API deployment on behalf of one caller. It is
// safe for concurrent use.
type Client struct {
	baseURL       *url.URL
	token         string
	tenantID      string
	httpClient    *http.Client
	retries       uint64
	retryInterval time.Duration
}

// Option tunes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithTenant pins every request to the given tenant via the X-Tenant-ID
// header. Only elevated callers may select a tenant other than their own.
func WithTenant(id string) Option {
	return func(c *Client) { c.tenantID = id }
}

// WithRetries sets how many times idempotent reads are reattempted after a
// transient network failure. Zero disables retrying. Writes are never
// retried by the client.
func WithRetries(n uint64) Option {
	return func(c *Client) { c.retries = n }
}

// WithRetryInterval sets the initial backoff delay between read retries.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) { c.retryInterval = d }
}

// New builds a client for the API at baseURL, authenticating every request
// with the given bearer token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, errors.Wrap(err, "invalid base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("base url must be absolute")
	}
	c := &Client{
		baseURL:       u,
		token:         token,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		retries:       defaultRetries,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if c.tenantID != "" {
		req.Header.Set("X-Tenant-ID", c.tenantID)
	}
	return req, nil
}

// do sends one request and returns the response when the status is 2xx.
// Network failures come back as *TransportError, server rejections as
// *APIError.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

// get runs an idempotent read, retrying transient network failures with
// exponential backoff. Server rejections and canceled contexts are final.
func (c *Client) get(ctx context.Context, path string, query url.Values, decode func(*http.Response) error) error {
	op := func() error {
		req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.do(req)
		if err != nil {
			if IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		defer func() { _ = resp.Body.Close() }()
		if err := decode(resp); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	// BackOff implementations are stateful; build a fresh one per call.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, c.retries), ctx))
}

// send runs a single write attempt. Writes are not assumed idempotent, so
// the client never retries them on its own.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if out == nil {
		return nil
	}
	return decodeJSON(resp.Body, out)
}

// decodeAPIError reads the error envelope. Non-JSON bodies keep their raw
// text as the message so proxy-generated errors stay legible.
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}
	var envelope struct {
		Message string            `json:"message"`
		Code    string            `json:"code"`
		Meta    map[string]string `json:"meta"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && (envelope.Code != "" || envelope.Message != "") {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Message
		apiErr.Meta = envelope.Meta
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func decodeJSON(r io.Reader, out any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return &TransportError{Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

func marshalBody(in any) (io.Reader, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	return bytes.NewReader(data), nil
}

func recordsPath(entity string) string {
	return apiPrefix + "/" + entity
}

func recordPath(entity, id string) string {
	return recordsPath(entity) + "/" + id
}
