// Package indexer talks to the Jackett dashboard and its result cache.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/mescon/Cachearr/internal/domain"
	"github.com/mescon/Cachearr/internal/logger"
)

const (
	loginPath = "/UI/Dashboard"
	cachePath = "/api/v2.0/indexers/cache"
)

// StatusError is returned when Jackett answers with an unexpected HTTP status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("jackett %s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("jackett %s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client authenticates against Jackett and reads its cache.
type Client struct {
	baseURL  string
	apiKey   string
	password string
	timeout  time.Duration
}

// NewClient creates a Jackett client. timeout applies to every request of a session.
func NewClient(baseURL, apiKey, password string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		password: password,
		timeout:  timeout,
	}
}

// Session is a logged-in dashboard session. Its cookies authorise the
// per-entry download links as well as the cache listing.
type Session struct {
	client *http.Client
}

// Client returns the cookie-carrying HTTP client of the session.
func (s *Session) Client() *http.Client {
	return s.client
}

// Authenticate posts the admin password to the dashboard. Any status other
// than 200 (after redirects) fails the login.
func (c *Client) Authenticate(ctx context.Context) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	httpClient := &http.Client{Jar: jar, Timeout: c.timeout}

	form := url.Values{"password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jackett login: %w", err)
	}
	defer resp.Body.Close()
	drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Op: "login", StatusCode: resp.StatusCode}
	}

	logger.Infof("Successfully logged in to Jackett")
	return &Session{client: httpClient}, nil
}

// FetchCache lists the cached search results. A JSON null decodes to an empty slice.
func (c *Client) FetchCache(ctx context.Context, s *Session) ([]domain.CacheEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+cachePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build cache request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jackett cache: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Op: "cache", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var entries []domain.CacheEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode jackett cache: %w", err)
	}
	logger.Debugf("Jackett cache returned %d entries", len(entries))
	return entries, nil
}

func drain(r io.Reader) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		logger.Debugf("Failed to drain response body: %v", err)
	}
}
