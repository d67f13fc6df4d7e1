// Package superset drives the Apache Superset REST API: it authenticates a session,
// registers virtual datasets, creates charts and assembles them into dashboards.
package superset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const (
	loginPath     = "/api/v1/security/login"
	csrfTokenPath = "/api/v1/security/csrf_token/"
	datasetPath   = "/api/v1/dataset/"
	chartPath     = "/api/v1/chart/"
	dashboardPath = "/api/v1/dashboard/"
)

// SessionConfig holds the credentials a Session authenticates with
type SessionConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// APIError is returned for any non-2xx response from Superset
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	if body == "" {
		return fmt.Sprintf("superset %s returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("superset %s returned status %d: %s", e.Op, e.StatusCode, body)
}

// Session holds the bearer and CSRF tokens for one orchestration. It is not shared
// across requests and is not safe for concurrent use.
type Session struct {
	cfg         SessionConfig
	client      *http.Client
	accessToken string
	csrfToken   string
}

// Option customizes a Session
type Option func(*Session)

// WithHTTPClient replaces the default HTTP client. The client should carry a cookie
// jar: Superset ties the CSRF token to the session cookie.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		s.client = client
	}
}

// NewSession creates an unauthenticated session
func NewSession(cfg SessionConfig, opts ...Option) *Session {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	jar, _ := cookiejar.New(nil)
	s := &Session{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout, Jar: jar},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BaseURL returns the API base URL without a trailing slash
func (s *Session) BaseURL() string {
	return s.cfg.BaseURL
}

// Authenticated reports whether a bearer token is held
func (s *Session) Authenticated() bool {
	return s.accessToken != ""
}

// Authenticate logs in and fetches a CSRF token. Every call performs a fresh exchange.
func (s *Session) Authenticate(ctx context.Context) error {
	s.accessToken = ""
	s.csrfToken = ""

	payload := map[string]any{
		"username": s.cfg.Username,
		"password": s.cfg.Password,
		"provider": "db",
		"refresh":  true,
	}

	body, err := s.send(ctx, "login", http.MethodPost, loginPath, payload, false)
	if err != nil {
		return fmt.Errorf("failed to authenticate with superset: %w", err)
	}

	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return fmt.Errorf("failed to authenticate with superset: login response has no access_token")
	}
	s.accessToken = token

	body, err = s.send(ctx, "csrf_token", http.MethodGet, csrfTokenPath, nil, true)
	if err != nil {
		s.accessToken = ""
		return fmt.Errorf("failed to fetch superset csrf token: %w", err)
	}
	s.csrfToken = gjson.GetBytes(body, "result").String()

	log.Debug().
		Str("base_url", s.cfg.BaseURL).
		Bool("csrf", s.csrfToken != "").
		Msg("superset session authenticated")

	return nil
}

// EnsureAuthenticated authenticates only if no bearer token is held yet
func (s *Session) EnsureAuthenticated(ctx context.Context) error {
	if s.Authenticated() {
		return nil
	}
	return s.Authenticate(ctx)
}

// call performs an authenticated request, logging in first when needed
func (s *Session) call(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	if err := s.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}
	return s.send(ctx, op, method, path, payload, true)
}

func (s *Session) send(ctx context.Context, op, method, path string, payload any, authed bool) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
		if s.csrfToken != "" {
			req.Header.Set("X-CSRFToken", s.csrfToken)
			req.Header.Set("Referer", s.cfg.BaseURL)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("superset %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read superset %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// idFromBody extracts the numeric "id" Superset returns from create endpoints
func idFromBody(op string, body []byte) (int, error) {
	id := gjson.GetBytes(body, "id")
	if !id.Exists() || id.Int() == 0 {
		return 0, fmt.Errorf("superset %s response has no id", op)
	}
	return int(id.Int()), nil
}
