package amadeus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/Domenick1991/tripquote/internal/domain"
)

var errUnauthorized = errors.New("provider rejected the access token")

// TokenSource is satisfied by *TokenManager.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

type ClientConfig struct {
	BaseURL         string
	DefaultCurrency string
	DefaultMax      int
}

type Client struct {
	cfg     ClientConfig
	tokens  TokenSource
	opts    options
	limiter *rate.Limiter
}

func NewClient(cfg ClientConfig, tokens TokenSource, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if cfg.DefaultMax <= 0 {
		cfg.DefaultMax = 5
	}

	c := &Client{cfg: cfg, tokens: tokens, opts: buildOptions(opts)}
	if c.opts.rps > 0 {
		burst := int(c.opts.rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(c.opts.rps), burst)
	}
	return c
}

// Quote prices req from live offers: the cheapest and dearest grand totals
// with HIGH confidence.
func (c *Client) Quote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResult, error) {
	resp, err := c.Search(ctx, newSearchRequest(req))
	if err != nil {
		return domain.QuoteResult{}, err
	}
	return quoteFromOffers(resp.Data)
}

// Search runs one flight-offers search. An unauthorized answer invalidates
// the token and is retried exactly once.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*OffersResponse, error) {
	req = c.applyDefaults(req)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := c.execute(ctx, req)
	if !errors.Is(err, errUnauthorized) {
		return resp, err
	}

	c.opts.log.Warn().Msg("provider returned 401, refreshing token and retrying once")
	c.tokens.Invalidate()

	resp, err = c.execute(ctx, req)
	if errors.Is(err, errUnauthorized) {
		return nil, &domain.AuthTransportError{Status: http.StatusUnauthorized, Err: err}
	}
	return resp, err
}

func (c *Client) applyDefaults(req SearchRequest) SearchRequest {
	if strings.TrimSpace(req.CurrencyCode) == "" {
		req.CurrencyCode = c.cfg.DefaultCurrency
	}
	if req.Max <= 0 {
		req.Max = c.cfg.DefaultMax
	}
	return req
}

func (c *Client) execute(ctx context.Context, req SearchRequest) (*OffersResponse, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &domain.UpstreamError{Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+offersPath+"?"+req.query().Encode(), nil)
	if err != nil {
		return nil, &domain.UpstreamError{Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.opts.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, errUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		c.opts.log.Warn().Str("body", snippet(body)).Msg("provider rate limit exceeded (429)")
		return nil, &domain.UpstreamError{
			Status:      resp.StatusCode,
			RateLimited: true,
			Err:         errors.New("too many requests"),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.opts.log.Error().Int("status", resp.StatusCode).Str("body", snippet(body)).Msg("provider flight search failed")
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("flight search responded %q", snippet(body))}
	}

	var offers OffersResponse
	if err := json.Unmarshal(body, &offers); err != nil {
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("decode offers: %w", err)}
	}
	return &offers, nil
}

func quoteFromOffers(offers []Offer) (domain.QuoteResult, error) {
	if len(offers) == 0 {
		return domain.QuoteResult{}, domain.ErrNoOffers
	}

	var (
		min, max decimal.Decimal
		found    bool
	)
	for _, o := range offers {
		if o.Price == nil || strings.TrimSpace(o.Price.GrandTotal) == "" {
			continue
		}
		total, err := decimal.NewFromString(strings.TrimSpace(o.Price.GrandTotal))
		if err != nil || total.IsNegative() {
			continue
		}
		if !found || total.LessThan(min) {
			min = total
		}
		if !found || total.GreaterThan(max) {
			max = total
		}
		found = true
	}
	if !found {
		return domain.QuoteResult{}, fmt.Errorf("%w: %d offers without a usable grand total", domain.ErrNoOffers, len(offers))
	}

	return domain.QuoteResult{
		Min:        min,
		Max:        max,
		Confidence: domain.ConfidenceHigh,
		Source:     domain.SourceProvider,
	}, nil
}
