// Package fallback prices flights without the provider, from distance and party size only.
package fallback

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/Domenick1991/tripquote/internal/domain"
)

const earthRadiusKm = 6371.0

var (
	baseFare       = decimal.NewFromInt(50)
	standardPerKm  = decimal.RequireFromString("0.12")
	premiumPerKm   = decimal.RequireFromString("0.30")
	lowerSpread    = decimal.RequireFromString("0.9")
	upperSpread    = decimal.RequireFromString("1.1")
	amountDecimals = int32(2)
)

// Estimate returns a MEDIUM confidence range of
// 0.9..1.1 x (50 + distanceKm x costPerKm) x travelers.
func Estimate(distanceKm float64, travelers int, preference domain.Preference) domain.QuoteResult {
	if distanceKm < 0 || math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) {
		distanceKm = 0
	}
	if travelers < 0 {
		travelers = 0
	}

	perKm := standardPerKm
	if preference == domain.PreferenceFast {
		perKm = premiumPerKm
	}

	perTraveler := baseFare.Add(decimal.NewFromFloat(distanceKm).Mul(perKm))
	party := perTraveler.Mul(decimal.NewFromInt(int64(travelers)))

	return domain.QuoteResult{
		Min:        party.Mul(lowerSpread).Round(amountDecimals),
		Max:        party.Mul(upperSpread).Round(amountDecimals),
		Confidence: domain.ConfidenceMedium,
		Source:     domain.SourceFallback,
	}
}

// DistanceKm is the haversine great-circle distance between two coordinates.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
