package events

import (
	"sync"
	"time"

	"github.com/Domenick1991/tripquote/internal/domain"
)

// Summary is a point-in-time copy of Stats.
type Summary struct {
	Quotes        int               `json:"quotes"`
	Live          int               `json:"live"`
	Fallback      int               `json:"fallback"`
	ByReason      map[string]int    `json:"by_reason"`
	BreakerStates map[string]string `json:"breaker_states"`
	BreakerOpens  int               `json:"breaker_opens"`
	LastEventAt   time.Time         `json:"last_event_at"`
}

// FallbackRatio is the share of quotes served by the fallback engine.
func (s Summary) FallbackRatio() float64 {
	if s.Quotes == 0 {
		return 0
	}
	return float64(s.Fallback) / float64(s.Quotes)
}

type Stats struct {
	mu            sync.Mutex
	quotes        int
	live          int
	fallback      int
	byReason      map[string]int
	breakerStates map[string]string
	breakerOpens  int
	lastEventAt   time.Time
}

func NewStats() *Stats {
	return &Stats{
		byReason:      make(map[string]int),
		breakerStates: make(map[string]string),
	}
}

func (s *Stats) RecordQuote(ev QuoteEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quotes++
	if ev.Source == domain.SourceProvider && ev.Confidence == domain.ConfidenceHigh {
		s.live++
	} else {
		s.fallback++
	}
	s.byReason[ev.Reason]++
	s.touch(ev.At)
}

// RecordBreaker tracks the latest state per endpoint and reports whether the
// event opened the circuit.
func (s *Stats) RecordBreaker(ev BreakerEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.breakerStates[ev.Endpoint] = ev.To
	s.touch(ev.At)
	if ev.To == "OPEN" {
		s.breakerOpens++
		return true
	}
	return false
}

func (s *Stats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Summary{
		Quotes:        s.quotes,
		Live:          s.live,
		Fallback:      s.fallback,
		ByReason:      make(map[string]int, len(s.byReason)),
		BreakerStates: make(map[string]string, len(s.breakerStates)),
		BreakerOpens:  s.breakerOpens,
		LastEventAt:   s.lastEventAt,
	}
	for k, v := range s.byReason {
		out.ByReason[k] = v
	}
	for k, v := range s.breakerStates {
		out.BreakerStates[k] = v
	}
	return out
}

func (s *Stats) touch(at time.Time) {
	if at.After(s.lastEventAt) {
		s.lastEventAt = at
	}
}
