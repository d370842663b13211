package alert

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Domenick1991/tripquote/internal/events"
)

// Sender tells operators that a provider circuit opened. Repeated openings of
// the same endpoint inside the quiet period are suppressed.
type Sender struct {
	out   io.Writer
	log   zerolog.Logger
	quiet time.Duration
	now   func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time
}

type Option func(*Sender)

func WithOutput(w io.Writer) Option {
	return func(s *Sender) { s.out = w }
}

func WithQuietPeriod(d time.Duration) Option {
	return func(s *Sender) { s.quiet = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sender) { s.now = now }
}

func NewSender(log zerolog.Logger, opts ...Option) *Sender {
	s := &Sender{
		out:   os.Stdout,
		log:   log,
		quiet: 5 * time.Minute,
		now:   time.Now,
		sent:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send reports whether an alert went out for ev.
func (s *Sender) Send(ctx context.Context, ev events.BreakerEvent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := s.now()
	s.mu.Lock()
	if last, ok := s.sent[ev.Endpoint]; ok && now.Sub(last) < s.quiet {
		s.mu.Unlock()
		s.log.Debug().Str("endpoint", ev.Endpoint).Msg("breaker alert suppressed")
		return false, nil
	}
	s.sent[ev.Endpoint] = now
	s.mu.Unlock()

	if _, err := fmt.Fprintf(s.out, "ALERT circuit for %s went %s -> %s at %s; quotes are served by the fallback engine\n",
		ev.Endpoint, ev.From, ev.To, ev.At.Format(time.RFC3339)); err != nil {
		return false, fmt.Errorf("failed to write alert: %w", err)
	}
	s.log.Warn().Str("endpoint", ev.Endpoint).Str("from", ev.From).Str("to", ev.To).Msg("breaker alert sent")
	return true, nil
}
