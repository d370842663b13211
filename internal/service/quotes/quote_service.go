package quotes

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Domenick1991/tripquote/internal/breaker"
	"github.com/Domenick1991/tripquote/internal/domain"
	"github.com/Domenick1991/tripquote/internal/events"
	"github.com/Domenick1991/tripquote/internal/fallback"
)

// BreakerName identifies the flight-offers circuit in logs and events.
const BreakerName = "flight-offers"

const (
	publishTimeout        = 5 * time.Second
	breakerPublishRetries = 3
)

type QuoteUseCase interface {
	Quote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResult, error)
}

type PricingClient interface {
	Quote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResult, error)
}

type QuoteCache interface {
	Get(ctx context.Context, key string) (domain.QuoteResult, bool, error)
	Set(ctx context.Context, key string, value domain.QuoteResult) error
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
	PublishWithRetry(ctx context.Context, topic, key string, payload any, maxRetries int) error
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithPublisher emits a QuoteEvent per served quote and a BreakerEvent per
// circuit transition.
func WithPublisher(p Publisher, quoteTopic, breakerTopic string) Option {
	return func(s *Service) {
		s.publisher = p
		s.quoteTopic = quoteTopic
		s.breakerTopic = breakerTopic
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	client  PricingClient
	cache   QuoteCache
	breaker *breaker.Breaker
	group   singleflight.Group

	publisher    Publisher
	quoteTopic   string
	breakerTopic string

	log zerolog.Logger
	now func() time.Time
}

func NewService(client PricingClient, cache QuoteCache, settings breaker.Settings, opts ...Option) *Service {
	s := &Service{
		client: client,
		cache:  cache,
		log:    zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.breaker = breaker.New(BreakerName, settings,
		breaker.WithClock(s.now),
		breaker.WithFailurePredicate(domain.IsBreakerFailure),
		breaker.WithOnStateChange(s.onBreakerChange),
	)
	return s
}

func (s *Service) Breaker() breaker.Snapshot {
	return s.breaker.Snapshot()
}

// Quote returns a price range for req. Provider trouble never reaches the
// caller: it is answered by the fallback estimate. Only invalid input,
// missing credentials and caller cancellation come back as errors.
func (s *Service) Quote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResult, error) {
	if err := req.Validate(); err != nil {
		return domain.QuoteResult{}, err
	}
	key := req.Fingerprint()

	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		s.publishQuote(ctx, key, cached, events.ReasonCacheHit, nil)
		return cached, nil
	} else if err != nil {
		s.log.Warn().Err(err).Str("fingerprint", key).Msg("quote cache read failed")
	}

	flight := s.group.DoChan(key, func() (any, error) {
		return s.compute(ctx, req, key)
	})
	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return domain.QuoteResult{}, ctx.Err()
	}

	if res.Err != nil && res.Shared && isContextErr(res.Err) && ctx.Err() == nil {
		// the leader was cancelled, not us
		return s.compute(ctx, req, key)
	}
	if res.Err != nil {
		return domain.QuoteResult{}, res.Err
	}
	return res.Val.(domain.QuoteResult), nil
}

func (s *Service) compute(ctx context.Context, req domain.QuoteRequest, key string) (domain.QuoteResult, error) {
	var live domain.QuoteResult
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		res, err := s.client.Quote(ctx, req)
		if err != nil {
			return err
		}
		live = res
		return nil
	})

	var (
		result domain.QuoteResult
		reason string
		cfgErr *domain.AuthConfigError
	)
	switch {
	case err == nil:
		result, reason = live, events.ReasonProvider
	case ctx.Err() != nil:
		return domain.QuoteResult{}, ctx.Err()
	case errors.As(err, &cfgErr):
		s.log.Error().Err(err).Msg("provider credentials are not configured")
		return domain.QuoteResult{}, err
	case errors.Is(err, breaker.ErrOpen):
		result, reason = fallback.Estimate(req.DistanceKm, req.Travelers, req.Preference), events.ReasonBreakerOpen
	default:
		s.log.Warn().Err(err).Str("fingerprint", key).Msg("provider quote failed, using fallback estimate")
		result, reason = fallback.Estimate(req.DistanceKm, req.Travelers, req.Preference), events.ReasonProviderError
	}

	if err := s.cache.Set(ctx, key, result); err != nil {
		s.log.Warn().Err(err).Str("fingerprint", key).Msg("quote cache write failed")
	}
	s.publishQuote(ctx, key, result, reason, err)

	s.log.Info().
		Str("fingerprint", key).
		Str("source", result.DataSource()).
		Str("reason", reason).
		Str("min", result.Min.StringFixed(2)).
		Str("max", result.Max.StringFixed(2)).
		Msg("quote served")
	return result, nil
}

func (s *Service) publishQuote(ctx context.Context, key string, result domain.QuoteResult, reason string, cause error) {
	if s.publisher == nil {
		return
	}
	ev := events.NewQuoteEvent(key, result, reason, cause, s.now())
	if err := s.publisher.Publish(ctx, s.quoteTopic, key, ev); err != nil {
		s.log.Warn().Err(err).Str("topic", s.quoteTopic).Msg("failed to publish quote event")
	}
}

func (s *Service) onBreakerChange(name string, from, to breaker.State) {
	s.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state changed")
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	ev := events.NewBreakerEvent(name, from.String(), to.String(), s.now())
	if err := s.publisher.PublishWithRetry(ctx, s.breakerTopic, name, ev, breakerPublishRetries); err != nil {
		s.log.Warn().Err(err).Str("topic", s.breakerTopic).Msg("failed to publish breaker event")
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

var _ QuoteUseCase = (*Service)(nil)
