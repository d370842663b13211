// Package events holds the messages published for every served quote and
// every breaker transition, plus the aggregate the worker keeps over them.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Domenick1991/tripquote/internal/domain"
)

// Quote outcome reasons.
const (
	ReasonProvider      = "provider"
	ReasonCacheHit      = "cache_hit"
	ReasonBreakerOpen   = "breaker_open"
	ReasonProviderError = "provider_error"
)

type QuoteEvent struct {
	ID          uuid.UUID         `json:"id"`
	Fingerprint string            `json:"fingerprint"`
	Source      domain.Source     `json:"source"`
	Confidence  domain.Confidence `json:"confidence"`
	Min         decimal.Decimal   `json:"min"`
	Max         decimal.Decimal   `json:"max"`
	Reason      string            `json:"reason"`
	Error       string            `json:"error,omitempty"`
	At          time.Time         `json:"at"`
}

func NewQuoteEvent(fingerprint string, result domain.QuoteResult, reason string, cause error, at time.Time) QuoteEvent {
	ev := QuoteEvent{
		ID:          uuid.New(),
		Fingerprint: fingerprint,
		Source:      result.Source,
		Confidence:  result.Confidence,
		Min:         result.Min,
		Max:         result.Max,
		Reason:      reason,
		At:          at.UTC(),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	return ev
}

type BreakerEvent struct {
	ID       uuid.UUID `json:"id"`
	Endpoint string    `json:"endpoint"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	At       time.Time `json:"at"`
}

func NewBreakerEvent(endpoint, from, to string, at time.Time) BreakerEvent {
	return BreakerEvent{
		ID:       uuid.New(),
		Endpoint: endpoint,
		From:     from,
		To:       to,
		At:       at.UTC(),
	}
}

func DecodeQuoteEvent(data []byte) (QuoteEvent, error) {
	var ev QuoteEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return QuoteEvent{}, fmt.Errorf("failed to decode quote event: %w", err)
	}
	if ev.Fingerprint == "" {
		return QuoteEvent{}, fmt.Errorf("quote event %s has no fingerprint", ev.ID)
	}
	return ev, nil
}

func DecodeBreakerEvent(data []byte) (BreakerEvent, error) {
	var ev BreakerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return BreakerEvent{}, fmt.Errorf("failed to decode breaker event: %w", err)
	}
	if ev.Endpoint == "" || ev.To == "" {
		return BreakerEvent{}, fmt.Errorf("breaker event %s is incomplete", ev.ID)
	}
	return ev, nil
}
