// Package backend talks to the service that owns authentication, event
// storage and calendar provider integration.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	appLog "kalena/internal/log"
	"kalena/internal/model"
)

// ErrUnauthorized is returned when the backend rejects the bearer token.
var ErrUnauthorized = errors.New("backend: unauthorized")

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: %s returned %d: %s", e.Path, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Providers are the calendar providers the backend can link.
var Providers = []string{"google", "outlook"}

// Client is a thin HTTP client for the backend API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	loc     *time.Location // zone for timestamps that carry no offset
}

// NewClient parses baseURL and returns a Client. A nil httpClient uses a
// client with a 15s timeout; a nil loc uses time.Local.
func NewClient(baseURL string, httpClient *http.Client, loc *time.Location) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("backend: base URL is empty")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend: unsupported scheme %q", u.Scheme)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Client{baseURL: u, http: httpClient, loc: loc}, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// authedClient wraps the base client with a static bearer token source.
func (c *Client) authedClient(ctx context.Context, token string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = c.http.Timeout
	return hc
}

func (c *Client) getJSON(ctx context.Context, token, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.authedClient(ctx, token).Do(req)
	if err != nil {
		return fmt.Errorf("backend: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	appLog.Debug("backend request", "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("backend: decode %s: %w", path, err)
	}
	return nil
}

// Profile fetches the user the token belongs to.
func (c *Client) Profile(ctx context.Context, token string) (model.User, error) {
	var u model.User
	if err := c.getJSON(ctx, token, "/users/me", &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// LinkURL returns the backend URL that starts the OAuth linking flow for
// provider and eventually redirects the browser to redirect. A non-empty
// state is passed through and echoed back on the redirect.
func (c *Client) LinkURL(provider, redirect, state string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	known := false
	for _, p := range Providers {
		if p == provider {
			known = true
			break
		}
	}
	if !known {
		return "", fmt.Errorf("backend: unknown provider %q", provider)
	}
	u, err := url.Parse(c.endpoint("/auth/" + provider))
	if err != nil {
		return "", err
	}
	q := u.Query()
	if redirect != "" {
		q.Set("redirect_uri", redirect)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
