package address

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Suggestion is advisory. The buyer may edit every field.
type Suggestion struct {
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Region     string `json:"region"`
	RegionCode string `json:"region_code"`
	Country    string `json:"country"`
}

type PostalLookup struct {
	baseURL    string
	httpClient *http.Client
}

func NewPostalLookup(baseURL string, httpClient *http.Client) *PostalLookup {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &PostalLookup{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type postOfficeResponse struct {
	Status     string `json:"Status"`
	PostOffice []struct {
		Name     string `json:"Name"`
		District string `json:"District"`
		State    string `json:"State"`
		Country  string `json:"Country"`
	} `json:"PostOffice"`
}

// Lookup derives city and region for an Indian postal code. A malformed code
// is rejected before any call; an unknown code or an upstream failure yields
// (nil, nil) since the suggestion is only a convenience.
func (l *PostalLookup) Lookup(ctx context.Context, code string) (*Suggestion, error) {
	code = strings.TrimSpace(code)
	if !ValidIndiaPostalCode(code) {
		return nil, fmt.Errorf("client: postal code %q must be exactly 6 digits", code)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/pincode/"+code, nil)
	if err != nil {
		return nil, fmt.Errorf("client: failed to build postal lookup request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("postal_code", code).Msg("client: postal lookup unavailable")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("postal_code", code).Msg("client: postal lookup returned non-200")
		return nil, nil
	}

	var payload []postOfficeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Warn().Err(err).Str("postal_code", code).Msg("client: failed to decode postal lookup response")
		return nil, nil
	}

	if len(payload) == 0 || !strings.EqualFold(payload[0].Status, "success") || len(payload[0].PostOffice) == 0 {
		return nil, nil
	}

	office := payload[0].PostOffice[0]
	return &Suggestion{
		PostalCode: code,
		City:       office.District,
		Region:     office.State,
		RegionCode: RegionCode(office.State),
		Country:    CountryIndia,
	}, nil
}
