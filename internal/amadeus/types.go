package amadeus

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Domenick1991/tripquote/internal/domain"
)

const (
	tokenPath  = "/v1/security/oauth2/token"
	offersPath = "/v2/shopping/flight-offers"

	TravelClassEconomy  = "ECONOMY"
	TravelClassBusiness = "BUSINESS"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// SearchRequest mirrors the flight-offers query string.
type SearchRequest struct {
	OriginLocationCode      string
	DestinationLocationCode string
	DepartureDate           string
	ReturnDate              string
	Adults                  int
	TravelClass             string
	CurrencyCode            string
	Max                     int
}

// Validate reports the first missing required field.
func (r SearchRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.OriginLocationCode) == "":
		return &domain.ValidationError{Field: "originLocationCode", Reason: "is required"}
	case strings.TrimSpace(r.DestinationLocationCode) == "":
		return &domain.ValidationError{Field: "destinationLocationCode", Reason: "is required"}
	case strings.TrimSpace(r.DepartureDate) == "":
		return &domain.ValidationError{Field: "departureDate", Reason: "is required"}
	case r.Adults < 1:
		return &domain.ValidationError{Field: "adults", Reason: "must be >= 1"}
	}
	return nil
}

func (r SearchRequest) query() url.Values {
	q := url.Values{}
	q.Set("originLocationCode", r.OriginLocationCode)
	q.Set("destinationLocationCode", r.DestinationLocationCode)
	q.Set("departureDate", r.DepartureDate)
	q.Set("adults", strconv.Itoa(r.Adults))
	q.Set("currencyCode", r.CurrencyCode)
	q.Set("max", strconv.Itoa(r.Max))
	if strings.TrimSpace(r.ReturnDate) != "" {
		q.Set("returnDate", r.ReturnDate)
	}
	if strings.TrimSpace(r.TravelClass) != "" {
		q.Set("travelClass", r.TravelClass)
	}
	return q
}

type OffersResponse struct {
	Data []Offer `json:"data"`
}

type Offer struct {
	Type  string `json:"type,omitempty"`
	ID    string `json:"id,omitempty"`
	Price *Price `json:"price,omitempty"`
}

type Price struct {
	Currency   string `json:"currency,omitempty"`
	Total      string `json:"total,omitempty"`
	GrandTotal string `json:"grandTotal,omitempty"`
}

// TravelClassFor maps a traveler preference to the provider's cabin class.
func TravelClassFor(p domain.Preference) string {
	if p == domain.PreferenceFast {
		return TravelClassBusiness
	}
	return TravelClassEconomy
}

func newSearchRequest(req domain.QuoteRequest) SearchRequest {
	return SearchRequest{
		OriginLocationCode:      strings.ToUpper(strings.TrimSpace(req.Origin)),
		DestinationLocationCode: strings.ToUpper(strings.TrimSpace(req.Destination)),
		DepartureDate:           domain.FormatDate(req.StartDate),
		ReturnDate:              domain.FormatDate(req.EndDate),
		Adults:                  req.Travelers,
		TravelClass:             TravelClassFor(req.Preference),
	}
}

func snippet(b []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return fmt.Sprintf("%s...", s[:cut])
	}
	return s
}
