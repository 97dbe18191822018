// Package graphql is a small client for posting typed GraphQL operations.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// DefaultURI is used when NewClient is given an empty endpoint.
const DefaultURI = "https://graphql.api.apollographql.com/api/graphql"

const defaultTimeout = 30 * time.Second

// Logger is the subset of *slog.Logger used by the client.
type Logger interface {
	Debug(msg string, args ...any)
}

// Client posts GraphQL operations to one endpoint with one API key.
// Construct it once and share it; it is safe for concurrent use.
type Client struct {
	apiKey  string
	uri     string
	http    *http.Client
	headers HeaderFunc
	logger  Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// HTTPClientOption sets the underlying HTTP client.
func HTTPClientOption(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// HeadersOption sets the header builder.
func HeadersOption(fn HeaderFunc) ClientOption {
	return func(c *Client) {
		c.headers = fn
	}
}

// LoggerOption sets the logger. If not set, the default slog logger will be used.
func LoggerOption(logger Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient returns a client for uri. An empty uri selects DefaultURI.
func NewClient(apiKey, uri string, opts ...ClientOption) *Client {
	if uri == "" {
		uri = DefaultURI
	}

	c := &Client{
		apiKey:  apiKey,
		uri:     uri,
		http:    &http.Client{Timeout: defaultTimeout},
		headers: DefaultHeaders("localsocket", "dev"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URI returns the endpoint the client posts to.
func (c *Client) URI() string {
	return c.uri
}

// Post sends op with vars and decodes the response data.
// The returned data is nil when the endpoint answered with null data.
func Post[V, R any](ctx context.Context, c *Client, op Operation[V, R], vars V) (*R, error) {
	status, body, err := c.post(ctx, op.BuildRequest(vars))
	if err != nil {
		return nil, err
	}

	data, err := op.ParseResponse(body)
	var respErr *ResponseError
	if errors.As(err, &respErr) && (status < 200 || status > 299) {
		respErr.Msg = fmt.Sprintf("%s (HTTP status %d)", respErr.Msg, status)
	}
	return data, err
}

func (c *Client) post(ctx context.Context, req Request) (int, []byte, error) {
	h, err := c.headers(c.apiKey)
	if err != nil {
		return 0, nil, &RequestError{Err: errors.Wrap(err, "could not build request headers")}
	}
	if h == nil {
		h = make(http.Header)
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return 0, nil, &RequestError{Err: errors.Wrap(err, "could not encode request")}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uri, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, &RequestError{Err: err}
	}
	httpReq.Header = h

	c.logger.Debug("graphql request", "operation", req.OperationName, "uri", c.uri)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, nil, &RequestError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &RequestError{Err: errors.Wrap(err, "could not read response body")}
	}

	c.logger.Debug("graphql response", "operation", req.OperationName, "status", resp.StatusCode)
	return resp.StatusCode, body, nil
}
