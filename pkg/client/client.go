// Package client is the base HTTP client shared by every chamicore-connect
// API binding. It owns request construction (paths, queries, JSON bodies,
// bearer auth), execution against the endpoint, and mapping of responses and
// transport failures into the backend error taxonomy.
//
// Methods mirror the API verbs: Get, Post, Put, Patch, Delete. Every method
// accepts a context.Context for cancellation and deadline propagation.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"

	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 10 << 20
	bodySnippetLen = 512
)

// Config holds the endpoint configuration. It is fixed at construction and
// shared read-only by every request the client issues.
type Config struct {
	// BaseURL is the root URL of the OCHAMI API gateway
	// (for example: https://ochami.example.com:8443).
	BaseURL string
	// Token is the bearer token used for API requests.
	Token string
	// TokenRefresh optionally resolves a token per request when Token is empty.
	TokenRefresh func(ctx context.Context) (string, error)
	// Timeout is the per-request timeout. Defaults to 30s.
	Timeout time.Duration
	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// RootCAs is an optional PEM bundle that replaces the system pool when
	// verifying the endpoint certificate.
	RootCAs []byte
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// ProxyURL routes requests through an http, https or socks5 proxy.
	ProxyURL string

	// HTTPClient is an optional custom http.Client. TLS and proxy options
	// above are ignored when it is set.
	HTTPClient *http.Client

	// Logger receives per-request debug logging. Nil disables it.
	Logger *zerolog.Logger
}

// Client executes HTTP requests against one OCHAMI endpoint.
type Client struct {
	baseURL string
	cfg     Config
	http    *http.Client
	logger  zerolog.Logger
}

// ProblemDetail is the RFC 7807 error body OCHAMI services return on 4xx/5xx.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title,omitempty"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// New creates a client for the given endpoint configuration.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, backend.Errorf(backend.KindInvalidArgument, "client: BaseURL is required")
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, backend.Wrap(backend.KindInvalidArgument, err, "client: invalid BaseURL")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = baseURL

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		transport, err := newTransport(cfg)
		if err != nil {
			return nil, err
		}
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		}
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Client{
		baseURL: baseURL,
		cfg:     cfg,
		http:    httpClient,
		logger:  logger,
	}, nil
}

func newTransport(cfg Config) (*http.Transport, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if len(cfg.RootCAs) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(cfg.RootCAs) {
			return nil, backend.Errorf(backend.KindInvalidArgument, "client: RootCAs contains no usable PEM certificates")
		}
		tlsConfig.RootCAs = pool
	}

	transport := &http.Transport{
		TLSClientConfig:     tlsConfig,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}

	proxyURL := strings.TrimSpace(cfg.ProxyURL)
	if proxyURL == "" {
		transport.Proxy = http.ProxyFromEnvironment
		return transport, nil
	}

	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, backend.Wrap(backend.KindInvalidArgument, err, "client: invalid ProxyURL")
	}
	switch parsed.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsed)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(parsed, proxy.Direct)
		if err != nil {
			return nil, backend.Wrap(backend.KindInvalidArgument, err, "client: building SOCKS dialer")
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, backend.Errorf(backend.KindInvalidArgument, "client: SOCKS dialer does not support context dialing")
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return contextDialer.DialContext(ctx, network, addr)
		}
	default:
		return nil, backend.Errorf(backend.KindInvalidArgument, "client: unsupported proxy scheme %q", parsed.Scheme)
	}
	return transport, nil
}

// BaseURL returns the normalized endpoint base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PathSegment validates and escapes one identifier for use as a URL path
// segment. Empty identifiers and identifiers containing path separators fail
// before any network activity.
func PathSegment(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", backend.Errorf(backend.KindInvalidArgument, "identifier is required")
	}
	if strings.ContainsAny(trimmed, "/\\") {
		return "", backend.Errorf(backend.KindInvalidArgument, "identifier %q must not contain path separators", trimmed)
	}
	return url.PathEscape(trimmed), nil
}

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body and decodes the response into out.
// body and out may each be nil.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Patch issues a PATCH with a JSON body and decodes the response into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE without a body.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// DeleteWithBody issues a DELETE carrying a JSON body; BSS boot parameter
// deletion selects records this way.
func (c *Client) DeleteWithBody(ctx context.Context, path string, body any) error {
	return c.do(ctx, http.MethodDelete, path, body, nil)
}

// do builds, executes and decodes one request. Building is deterministic and
// performs no I/O; every failure before the wire surfaces as
// InvalidArgument or EncodingError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.buildRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.send(ctx, req)
	if err != nil {
		mapped := mapSendError(err)
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Dur("duration", time.Since(start)).
			Err(mapped).
			Msg("request failed")
		return mapped
	}
	defer resp.Body.Close()

	payload, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request complete")

	return c.mapResponse(resp.StatusCode, payload, readErr, out)
}

func (c *Client) buildRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, backend.Errorf(backend.KindInvalidArgument, "request path %q must start with '/'", path)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, backend.Wrap(backend.KindEncoding, err, "encoding request body")
		}
		reader = bytes.NewReader(encoded)
	}

	// The request context carries values but not cancellation: once handed
	// to the transport the round-trip runs to completion under the client
	// timeout even when the caller gives up early (see send).
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), method, c.baseURL+path, reader)
	if err != nil {
		return nil, backend.Wrap(backend.KindInvalidArgument, err, "building request")
	}

	token, err := c.token(ctx)
	if err != nil {
		return nil, backend.Wrap(backend.KindInvalidArgument, err, "resolving token")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	return req, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.cfg.Token != "" {
		return c.cfg.Token, nil
	}
	if c.cfg.TokenRefresh != nil {
		return c.cfg.TokenRefresh(ctx)
	}
	return "", nil
}

// send bridges the caller's context onto the blocking round-trip. The
// round-trip itself is not preemptible: when the caller is cancelled or times
// out first, send returns immediately and the in-flight call drains in the
// background under the client timeout, its result discarded.
func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	type roundTripResult struct {
		resp *http.Response
		err  error
	}
	done := make(chan roundTripResult, 1)
	go func() {
		resp, err := c.http.Do(req)
		done <- roundTripResult{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.resp != nil {
				_, _ = io.Copy(io.Discard, io.LimitReader(r.resp.Body, maxBodyBytes))
				_ = r.resp.Body.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func mapSendError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return backend.Wrap(backend.KindTimeout, err, "request deadline exceeded")
	case errors.Is(err, context.Canceled):
		return backend.Wrap(backend.KindTransport, err, "request canceled")
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return backend.Wrap(backend.KindTimeout, err, "request deadline exceeded")
	}
	return backend.Wrap(backend.KindTransport, err, "executing request")
}

// mapResponse classifies a received response: 2xx decodes into out, 4xx maps
// to ClientError, 5xx to ServerError. It never retries.
func (c *Client) mapResponse(status int, payload []byte, readErr error, out any) error {
	switch {
	case status >= 200 && status <= 299:
		if readErr != nil {
			return &backend.Error{
				Kind:   backend.KindDecode,
				Status: status,
				Detail: "reading response body",
				Body:   snippet(payload),
				Err:    readErr,
			}
		}
		if out == nil || len(bytes.TrimSpace(payload)) == 0 {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return &backend.Error{
				Kind:   backend.KindDecode,
				Status: status,
				Detail: "decoding response body",
				Body:   snippet(payload),
				Err:    err,
			}
		}
		return nil

	case status >= 400 && status <= 499:
		return responseError(backend.KindClient, status, payload)

	default:
		return responseError(backend.KindServer, status, payload)
	}
}

func responseError(kind backend.Kind, status int, payload []byte) error {
	detail := http.StatusText(status)

	var problem ProblemDetail
	if err := json.Unmarshal(payload, &problem); err == nil {
		if problem.Detail != "" {
			detail = problem.Detail
		} else if problem.Title != "" {
			detail = problem.Title
		}
	} else if text := strings.TrimSpace(string(payload)); text != "" {
		detail = snippet([]byte(text))
	}

	return &backend.Error{
		Kind:   kind,
		Status: status,
		Detail: detail,
		Body:   snippet(payload),
	}
}

func snippet(payload []byte) string {
	text := strings.TrimSpace(string(payload))
	if len(text) > bodySnippetLen {
		return text[:bodySnippetLen]
	}
	return text
}

// Query renders url.Values as a query suffix, or an empty string when no
// parameter is set.
func Query(params url.Values) string {
	if encoded := params.Encode(); encoded != "" {
		return "?" + encoded
	}
	return ""
}
