package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DateLayout   = "2006-01-02"
	MinTravelers = 1
	MaxTravelers = 6
)

type Preference string

const (
	PreferenceCheap    Preference = "CHEAP"
	PreferenceBalanced Preference = "BALANCED"
	PreferenceFast     Preference = "FAST"
)

// ParsePreference accepts any letter case; an empty value means BALANCED.
func ParsePreference(s string) (Preference, error) {
	switch p := Preference(strings.ToUpper(strings.TrimSpace(s))); p {
	case PreferenceCheap, PreferenceBalanced, PreferenceFast:
		return p, nil
	case "":
		return PreferenceBalanced, nil
	default:
		return "", &ValidationError{Field: "preference", Reason: fmt.Sprintf("unknown value %q", s)}
	}
}

func (p Preference) Valid() bool {
	return p == PreferenceCheap || p == PreferenceBalanced || p == PreferenceFast
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

type Source string

const (
	SourceProvider Source = "provider"
	SourceFallback Source = "fallback"
)

type QuoteRequest struct {
	Origin      string
	Destination string
	StartDate   time.Time
	EndDate     time.Time // zero for one-way
	Travelers   int
	Preference  Preference
	DistanceKm  float64
}

// Validate checks the fields every pricing path depends on.
func (r QuoteRequest) Validate() error {
	if strings.TrimSpace(r.Origin) == "" {
		return &ValidationError{Field: "origin", Reason: "is required"}
	}
	if strings.TrimSpace(r.Destination) == "" {
		return &ValidationError{Field: "destination", Reason: "is required"}
	}
	if r.StartDate.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "is required"}
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return &ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	}
	if r.Travelers < MinTravelers || r.Travelers > MaxTravelers {
		return &ValidationError{Field: "travelers", Reason: fmt.Sprintf("must be between %d and %d", MinTravelers, MaxTravelers)}
	}
	if !r.Preference.Valid() {
		return &ValidationError{Field: "preference", Reason: fmt.Sprintf("unknown value %q", r.Preference)}
	}
	if r.DistanceKm < 0 {
		return &ValidationError{Field: "distance_km", Reason: "must not be negative"}
	}
	return nil
}

// Fingerprint is the cache key of the request. Location codes are compared
// case-insensitively; distance is derived from the locations and is not part of it.
func (r QuoteRequest) Fingerprint() string {
	return strings.Join([]string{
		strings.ToUpper(strings.TrimSpace(r.Origin)),
		strings.ToUpper(strings.TrimSpace(r.Destination)),
		FormatDate(r.StartDate),
		FormatDate(r.EndDate),
		strconv.Itoa(r.Travelers),
		string(r.Preference),
	}, "|")
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func ParseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

type QuoteResult struct {
	Min        decimal.Decimal `json:"min"`
	Max        decimal.Decimal `json:"max"`
	Confidence Confidence      `json:"confidence"`
	Source     Source          `json:"source"`
}

// DataSource is the label shown to travelers next to the estimate.
func (q QuoteResult) DataSource() string {
	if q.Source == SourceProvider && q.Confidence == ConfidenceHigh {
		return "Amadeus Live"
	}
	return "Fallback Engine"
}
