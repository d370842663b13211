package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/Domenick1991/tripquote/internal/events"
	"github.com/Domenick1991/tripquote/internal/kafka"
)

type Alerter interface {
	Send(ctx context.Context, ev events.BreakerEvent) (bool, error)
}

type EventSource interface {
	Topic() string
	Consume(ctx context.Context, handler kafka.Handler) error
}

// Worker folds quote and breaker events into Stats, alerts when a circuit
// opens and logs a summary every interval.
type Worker struct {
	stats    *events.Stats
	alerts   Alerter
	interval time.Duration
	log      zerolog.Logger
}

func NewWorker(stats *events.Stats, alerts Alerter, interval time.Duration, log zerolog.Logger) *Worker {
	return &Worker{stats: stats, alerts: alerts, interval: interval, log: log}
}

func (w *Worker) HandleQuote(_ context.Context, msg kafkaGo.Message) error {
	ev, err := events.DecodeQuoteEvent(msg.Value)
	if err != nil {
		return err
	}
	w.stats.RecordQuote(ev)
	return nil
}

func (w *Worker) HandleBreaker(ctx context.Context, msg kafkaGo.Message) error {
	ev, err := events.DecodeBreakerEvent(msg.Value)
	if err != nil {
		return err
	}
	if opened := w.stats.RecordBreaker(ev); !opened || w.alerts == nil {
		return nil
	}
	_, err = w.alerts.Send(ctx, ev)
	return err
}

// Run blocks until ctx is done. quotes and breakers may be nil.
func (w *Worker) Run(ctx context.Context, quotes, breakers EventSource) {
	var wg sync.WaitGroup
	consume := func(src EventSource, handler kafka.Handler) {
		if src == nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := src.Consume(ctx, handler); err != nil {
				w.log.Error().Err(err).Str("topic", src.Topic()).Msg("consumer stopped")
			}
		}()
	}
	consume(quotes, w.HandleQuote)
	consume(breakers, w.HandleBreaker)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.logSummary()
		case <-ctx.Done():
			wg.Wait()
			w.logSummary()
			return
		}
	}
}

func (w *Worker) logSummary() {
	sum := w.stats.Summary()
	w.log.Info().
		Int("quotes", sum.Quotes).
		Int("live", sum.Live).
		Int("fallback", sum.Fallback).
		Float64("fallback_ratio", sum.FallbackRatio()).
		Int("breaker_opens", sum.BreakerOpens).
		Interface("breaker_states", sum.BreakerStates).
		Interface("by_reason", sum.ByReason).
		Msg("quote summary")
}
