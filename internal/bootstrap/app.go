package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Domenick1991/tripquote/config"
	"github.com/Domenick1991/tripquote/internal/amadeus"
	"github.com/Domenick1991/tripquote/internal/breaker"
	"github.com/Domenick1991/tripquote/internal/cache"
	"github.com/Domenick1991/tripquote/internal/kafka"
	"github.com/Domenick1991/tripquote/internal/service/quotes"
)

// App bundles the quote service with the resources it owns.
type App struct {
	Quotes *quotes.Service

	closers []func() error
}

// Close releases the cache and event producer.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewApp wires token manager, pricing client, cache backend, breaker and the
// optional Kafka producer into a quote service.
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{}

	var qc quotes.QuoteCache
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Cache.TTL())
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := redisCache.Ping(pingCtx)
		cancel()
		if err != nil {
			_ = redisCache.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		app.closers = append(app.closers, redisCache.Close)
		qc = redisCache
	default:
		qc = cache.NewMemoryCache(cfg.Cache.TTL(), cache.WithCapacity(cfg.Cache.Capacity))
	}

	clientOpts := []amadeus.Option{
		amadeus.WithTimeout(cfg.Pricing.CallTimeout()),
		amadeus.WithLogger(log.With().Str("component", "amadeus").Logger()),
		amadeus.WithRateLimit(cfg.Pricing.RequestsPerSecond),
	}
	tokens := amadeus.NewTokenManager(amadeus.Credentials{
		BaseURL:      cfg.Pricing.BaseURL,
		ClientID:     cfg.Pricing.ClientID,
		ClientSecret: cfg.Pricing.ClientSecret,
	}, clientOpts...)
	client := amadeus.NewClient(amadeus.ClientConfig{
		BaseURL:         cfg.Pricing.BaseURL,
		DefaultCurrency: cfg.Pricing.DefaultCurrency,
		DefaultMax:      cfg.Pricing.DefaultMax,
	}, tokens, clientOpts...)

	opts := []quotes.Option{quotes.WithLogger(log.With().Str("component", "quotes").Logger())}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := producer.CheckConnection(checkCtx)
		cancel()
		if err != nil {
			_ = producer.Close()
			_ = app.Close()
			return nil, fmt.Errorf("connect kafka %v: %w", cfg.Kafka.Brokers, err)
		}
		app.closers = append(app.closers, producer.Close)
		opts = append(opts, quotes.WithPublisher(producer, cfg.Kafka.QuoteEventsTopic, cfg.Kafka.BreakerEventsTopic))
	}

	app.Quotes = quotes.NewService(client, qc, breaker.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Breaker.Cooldown(),
	}, opts...)
	return app, nil
}
