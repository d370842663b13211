// Package amadeus talks to the flight-offer provider: OAuth2 client-credential
// tokens and the flight-offers search.
package amadeus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Domenick1991/tripquote/internal/domain"
)

// SafetyMargin is the minimum remaining lifetime of a cached token handed out.
const SafetyMargin = 60 * time.Second

const defaultTimeout = 10 * time.Second

type Option func(*options)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
	log        zerolog.Logger
	rps        float64
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout bounds every outbound call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRateLimit caps outbound searches per second; zero disables the limit.
func WithRateLimit(rps float64) Option {
	return func(o *options) { o.rps = rps }
}

func buildOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		now:        time.Now,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type Credentials struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
}

type accessToken struct {
	value     string
	expiresAt time.Time
}

func (t accessToken) usableAt(now time.Time) bool {
	return t.value != "" && now.Add(SafetyMargin).Before(t.expiresAt)
}

// TokenManager owns the provider bearer token. Refreshes are serialized: one
// caller fetches while the others wait and then reuse its token.
type TokenManager struct {
	creds Credentials
	opts  options

	mu    sync.Mutex
	token accessToken
}

func NewTokenManager(creds Credentials, opts ...Option) *TokenManager {
	creds.BaseURL = strings.TrimRight(creds.BaseURL, "/")
	return &TokenManager{creds: creds, opts: buildOptions(opts)}
}

// Token returns a bearer token with at least SafetyMargin left, fetching a
// new one when needed. A freshly fetched token is returned even when the
// provider granted less than SafetyMargin; it is never served from cache.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token.usableAt(m.opts.now()) {
		return m.token.value, nil
	}
	if err := m.checkCredentials(); err != nil {
		return "", err
	}

	m.opts.log.Info().Msg("fetching new provider access token")
	tok, err := m.fetch(ctx)
	if err != nil {
		m.opts.log.Error().Err(err).Msg("failed to fetch provider access token")
		return "", err
	}
	m.token = tok
	m.opts.log.Info().Time("expires_at", tok.expiresAt).Msg("obtained provider access token")
	return tok.value, nil
}

// Invalidate drops the cached token so the next Token call refreshes.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.token = accessToken{}
	m.mu.Unlock()
	m.opts.log.Info().Msg("invalidated cached provider access token")
}

func (m *TokenManager) checkCredentials() error {
	var missing []string
	if strings.TrimSpace(m.creds.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(m.creds.ClientSecret) == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return &domain.AuthConfigError{Missing: missing}
	}
	return nil
}

func (m *TokenManager) fetch(ctx context.Context) (accessToken, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.creds.ClientID)
	form.Set("client_secret", m.creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.creds.BaseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return accessToken{}, &domain.AuthTransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.opts.httpClient.Do(req)
	if err != nil {
		return accessToken{}, &domain.AuthTransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return accessToken{}, &domain.AuthTransportError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return accessToken{}, &domain.AuthTransportError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("token endpoint responded %q", snippet(body)),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return accessToken{}, &domain.AuthTransportError{Status: resp.StatusCode, Err: fmt.Errorf("decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return accessToken{}, &domain.AuthTransportError{Status: resp.StatusCode, Err: errors.New("token response has no access_token")}
	}

	return accessToken{
		value:     tr.AccessToken,
		expiresAt: m.opts.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
