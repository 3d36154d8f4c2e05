package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrAuth means the bearer token is missing, invalid or expired.
	ErrAuth = errors.New("authentication required")
	// ErrRemote covers every other failed call to the backend.
	ErrRemote = errors.New("remote call failed")
)

// RemoteError is a non-2xx, non-401 answer from the backend.
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// Config holds the settings of the backend client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the NFA backend REST API. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     zerolog.Logger
}

// New creates a backend client. A zero timeout leaves the http.Client default.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream base url %q", cfg.BaseURL)
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.With().Str("component", "upstream").Logger(),
	}, nil
}

// BaseURL returns the backend root, used to resolve relative file links.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ResolveFileURL turns a backend-relative attachment path into an absolute URL.
func (c *Client) ResolveFileURL(raw string) string {
	if raw == "" || strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return c.baseURL.String() + raw
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do executes the request and decodes a JSON body into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrRemote, req.Method, req.URL.Path, err)
	}
	return nil
}

// send executes the request and maps failures; on success the caller owns the body.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("upstream request failed")
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRemote, req.Method, req.URL.Path, err)
	}

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("upstream request")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %s %s", ErrAuth, req.Method, req.URL.Path)
	}
	return nil, &RemoteError{
		Method:     req.Method,
		Path:       req.URL.Path,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(resp.Body),
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path, token string, out any) error {
	if token == "" {
		return ErrAuth
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, token, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path, token string, in, out any) error {
	if token == "" {
		return ErrAuth
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, token, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// errorMessage extracts {"detail": ...} / {"message": ...} bodies, falling back to raw text.
func errorMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 4<<10))
	var envelope struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil {
		switch {
		case envelope.Message != "":
			return envelope.Message
		case envelope.Error != "":
			return envelope.Error
		case envelope.Detail != nil:
			if s, ok := envelope.Detail.(string); ok {
				return s
			}
			b, _ := json.Marshal(envelope.Detail)
			return string(b)
		}
	}
	return strings.TrimSpace(string(raw))
}
