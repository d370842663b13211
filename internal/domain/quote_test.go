package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() QuoteRequest {
	return QuoteRequest{
		Origin:      "lon",
		Destination: "Par",
		StartDate:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC),
		Travelers:   2,
		Preference:  PreferenceFast,
		DistanceKm:  344,
	}
}

func TestQuoteRequest_Fingerprint_IgnoresCodeCase(t *testing.T) {
	a := validRequest()
	b := validRequest()
	b.Origin = " LON "
	b.Destination = "PAR"
	b.DistanceKm = 999

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, "LON|PAR|2026-06-01|2026-06-05|2|FAST", a.Fingerprint())
}

func TestQuoteRequest_Fingerprint_DistinguishesItineraries(t *testing.T) {
	base := validRequest()

	otherEnd := base
	otherEnd.EndDate = base.EndDate.AddDate(0, 0, 1)

	otherTravelers := base
	otherTravelers.Travelers = 3

	oneWay := base
	oneWay.EndDate = time.Time{}

	otherPreference := base
	otherPreference.Preference = PreferenceCheap

	for _, r := range []QuoteRequest{otherEnd, otherTravelers, oneWay, otherPreference} {
		assert.NotEqual(t, base.Fingerprint(), r.Fingerprint())
	}
}

func TestQuoteRequest_Validate(t *testing.T) {
	tests := []struct {
		field  string
		mutate func(*QuoteRequest)
	}{
		{"origin", func(r *QuoteRequest) { r.Origin = "  " }},
		{"destination", func(r *QuoteRequest) { r.Destination = "" }},
		{"start_date", func(r *QuoteRequest) { r.StartDate = time.Time{} }},
		{"end_date", func(r *QuoteRequest) { r.EndDate = r.StartDate.AddDate(0, 0, -1) }},
		{"travelers", func(r *QuoteRequest) { r.Travelers = 0 }},
		{"travelers", func(r *QuoteRequest) { r.Travelers = 7 }},
		{"preference", func(r *QuoteRequest) { r.Preference = "SLOW" }},
		{"distance_km", func(r *QuoteRequest) { r.DistanceKm = -1 }},
	}

	require.NoError(t, validRequest().Validate())

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			r := validRequest()
			tt.mutate(&r)

			var vErr *ValidationError
			require.ErrorAs(t, r.Validate(), &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestParsePreference(t *testing.T) {
	p, err := ParsePreference("fast")
	require.NoError(t, err)
	assert.Equal(t, PreferenceFast, p)

	p, err = ParsePreference("")
	require.NoError(t, err)
	assert.Equal(t, PreferenceBalanced, p)

	_, err = ParsePreference("luxury")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestIsBreakerFailure(t *testing.T) {
	assert.True(t, IsBreakerFailure(ErrNoOffers))
	assert.True(t, IsBreakerFailure(fmt.Errorf("search: %w", &UpstreamError{Status: 503})))
	assert.True(t, IsBreakerFailure(&AuthTransportError{Status: 401}))
	assert.False(t, IsBreakerFailure(&AuthConfigError{Missing: []string{"client_id"}}))
	assert.False(t, IsBreakerFailure(&ValidationError{Field: "origin"}))
	assert.False(t, IsBreakerFailure(errors.New("boom")))
	assert.False(t, IsBreakerFailure(nil))
}

func TestQuoteResult_DataSource(t *testing.T) {
	live := QuoteResult{Min: decimal.NewFromInt(1), Max: decimal.NewFromInt(2), Confidence: ConfidenceHigh, Source: SourceProvider}
	fallback := QuoteResult{Min: decimal.NewFromInt(1), Max: decimal.NewFromInt(2), Confidence: ConfidenceMedium, Source: SourceFallback}

	assert.Equal(t, "Amadeus Live", live.DataSource())
	assert.Equal(t, "Fallback Engine", fallback.DataSource())
}
