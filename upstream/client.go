package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxBodyBytes caps how much of an upstream body is read.
const MaxBodyBytes = 32 << 20

// hopHeaders are connection-scoped and never relayed.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Response is a relayed upstream response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client calls the upstream backend.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: every call honors ctx cancellation and deadlines.
// - Errors: transport failures are wrapped; GetJSON returns *StatusError for
//   non-2xx responses and ErrMalformedBody for non-JSON bodies.
type Client struct {
	http      *http.Client
	userAgent string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent sets the User-Agent sent upstream.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates an upstream client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: "apicache",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON fetches url and returns its body once it is known to be JSON.
func (c *Client) GetJSON(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: get %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("upstream: read %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, Status: resp.StatusCode, Body: body}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s", ErrMalformedBody, url)
	}
	return body, nil
}

// Forward sends a request upstream and relays the response as is. Any
// status, including 4xx and 5xx, is returned as a Response rather than an
// error. A missing Content-Type defaults to application/json.
func (c *Client) Forward(ctx context.Context, method, url string, header http.Header, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}

	req.Header = cleanHeader(header)
	req.Header.Del("Host")
	req.Header.Del("Content-Length")
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: %s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, MaxBodyBytes)); err != nil {
		return nil, fmt.Errorf("upstream: read %s: %w", url, err)
	}

	out := cleanHeader(resp.Header)
	out.Del("Content-Length")
	return &Response{Status: resp.StatusCode, Header: out, Body: buf.Bytes()}, nil
}

// cleanHeader clones h without hop-by-hop headers, including any named in
// Connection.
func cleanHeader(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		return http.Header{}
	}
	for _, v := range out.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		out.Del(name)
	}
	return out
}
