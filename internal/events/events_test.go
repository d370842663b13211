package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/tripquote/internal/domain"
)

var at = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func liveResult() domain.QuoteResult {
	return domain.QuoteResult{
		Min:        decimal.RequireFromString("256.00"),
		Max:        decimal.RequireFromString("300.00"),
		Confidence: domain.ConfidenceHigh,
		Source:     domain.SourceProvider,
	}
}

func fallbackResult() domain.QuoteResult {
	return domain.QuoteResult{
		Min:        decimal.NewFromInt(45),
		Max:        decimal.NewFromInt(55),
		Confidence: domain.ConfidenceMedium,
		Source:     domain.SourceFallback,
	}
}

func TestDecodeQuoteEvent(t *testing.T) {
	ev := NewQuoteEvent("LON|PAR|2026-06-01||1|CHEAP", liveResult(), ReasonProvider, nil, at)
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	got, err := DecodeQuoteEvent(data)
	require.NoError(t, err)

	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, ev.Fingerprint, got.Fingerprint)
	assert.True(t, ev.Min.Equal(got.Min))
	assert.Empty(t, got.Error)
}

func TestDecodeQuoteEvent_Rejects(t *testing.T) {
	_, err := DecodeQuoteEvent([]byte("{"))
	assert.ErrorContains(t, err, "failed to decode quote event")

	_, err = DecodeQuoteEvent([]byte(`{"reason":"provider"}`))
	assert.ErrorContains(t, err, "no fingerprint")
}

func TestDecodeBreakerEvent_Rejects(t *testing.T) {
	_, err := DecodeBreakerEvent([]byte(`{"endpoint":"flight-offers"}`))
	assert.ErrorContains(t, err, "incomplete")
}

func TestStats(t *testing.T) {
	s := NewStats()

	s.RecordQuote(NewQuoteEvent("a", liveResult(), ReasonProvider, nil, at))
	s.RecordQuote(NewQuoteEvent("a", liveResult(), ReasonCacheHit, nil, at.Add(time.Second)))
	s.RecordQuote(NewQuoteEvent("b", fallbackResult(), ReasonBreakerOpen, nil, at.Add(2*time.Second)))

	opened := s.RecordBreaker(NewBreakerEvent("flight-offers", "CLOSED", "OPEN", at.Add(3*time.Second)))
	assert.True(t, opened)
	opened = s.RecordBreaker(NewBreakerEvent("flight-offers", "OPEN", "HALF_OPEN", at.Add(4*time.Second)))
	assert.False(t, opened)

	sum := s.Summary()
	assert.Equal(t, 3, sum.Quotes)
	assert.Equal(t, 2, sum.Live)
	assert.Equal(t, 1, sum.Fallback)
	assert.Equal(t, 1, sum.ByReason[ReasonBreakerOpen])
	assert.Equal(t, "HALF_OPEN", sum.BreakerStates["flight-offers"])
	assert.Equal(t, 1, sum.BreakerOpens)
	assert.Equal(t, at.Add(4*time.Second), sum.LastEventAt)
	assert.InDelta(t, 1.0/3.0, sum.FallbackRatio(), 1e-9)
}

func TestStats_SummaryIsACopy(t *testing.T) {
	s := NewStats()
	s.RecordQuote(NewQuoteEvent("a", liveResult(), ReasonProvider, nil, at))

	sum := s.Summary()
	sum.ByReason[ReasonProvider] = 99

	assert.Equal(t, 1, s.Summary().ByReason[ReasonProvider])
}

func TestStats_Concurrent(t *testing.T) {
	s := NewStats()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordQuote(NewQuoteEvent("a", fallbackResult(), ReasonProviderError, nil, at))
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, s.Summary().Fallback)
	assert.Zero(t, Summary{}.FallbackRatio())
}
