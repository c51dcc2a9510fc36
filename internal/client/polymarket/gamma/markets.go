package gamma

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"polyhedge/internal/models"
)

// rawMarket mirrors the Gamma market payload. Several numeric and list
// fields arrive either typed or as stringified JSON depending on endpoint
// and age of the market, so everything tolerant-decodes.
type rawMarket struct {
	ID            string      `json:"id"`
	Question      string      `json:"question"`
	Description   string      `json:"description"`
	Outcomes      stringSlice `json:"outcomes"`
	OutcomePrices numberSlice `json:"outcomePrices"`
	Liquidity     flexFloat   `json:"liquidity"`
	LiquidityNum  flexFloat   `json:"liquidityNum"`
	Volume        flexFloat   `json:"volume"`
	VolumeNum     flexFloat   `json:"volumeNum"`
	EndDate       *string     `json:"endDate"`
	Slug          string      `json:"slug"`
	ConditionID   string      `json:"conditionId"`
}

type rawEvent struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Slug        string      `json:"slug"`
	Markets     []rawMarket `json:"markets"`
}

// stringSlice decodes either a JSON array of strings or a string containing
// JSON-encoded array.
type stringSlice []string

func (s *stringSlice) UnmarshalJSON(b []byte) error {
	var direct []string
	if err := json.Unmarshal(b, &direct); err == nil {
		*s = direct
		return nil
	}
	var encoded string
	if err := json.Unmarshal(b, &encoded); err != nil {
		*s = nil
		return nil
	}
	var nested []string
	if err := json.Unmarshal([]byte(encoded), &nested); err != nil {
		*s = nil
		return nil
	}
	*s = nested
	return nil
}

// numberSlice decodes arrays of numbers whose elements may be strings,
// possibly wrapped in a stringified array.
type numberSlice []float64

func (n *numberSlice) UnmarshalJSON(b []byte) error {
	var encoded string
	if err := json.Unmarshal(b, &encoded); err == nil {
		b = []byte(encoded)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		*n = nil
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, item := range raw {
		var f float64
		if err := json.Unmarshal(item, &f); err == nil {
			out = append(out, f)
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if parsed, err := strconv.ParseFloat(s, 64); err == nil {
				out = append(out, parsed)
				continue
			}
		}
		out = append(out, 0)
	}
	*n = out
	return nil
}

// flexFloat decodes a float that may arrive as a number, a string, or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = 0
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			*f = flexFloat(parsed)
		}
		return nil
	}
	*f = 0
	return nil
}

// ListMarketsPage fetches one page of active markets from /markets.
func (c *Client) ListMarketsPage(ctx context.Context, limit, offset int) ([]models.Market, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	query.Set("active", "true")
	query.Set("closed", "false")
	query.Set("enable_order_book", "true")

	body, err := c.doRequest(ctx, "/markets", query)
	if err != nil {
		return nil, err
	}
	var items []rawMarket
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, err
	}
	markets := make([]models.Market, 0, len(items))
	for _, item := range items {
		if m, ok := item.toMarket("", ""); ok {
			markets = append(markets, m)
		}
	}
	return markets, nil
}

// ListEventsPage fetches one page of active events from /events and flattens
// their nested markets. Event description and slug backfill markets that
// lack their own (multi-outcome markets usually do).
func (c *Client) ListEventsPage(ctx context.Context, limit, offset int) ([]models.Market, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	query.Set("active", "true")
	query.Set("closed", "false")
	query.Set("enable_order_book", "true")

	body, err := c.doRequest(ctx, "/events", query)
	if err != nil {
		return nil, err
	}
	var events []rawEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, err
	}
	var markets []models.Market
	for _, event := range events {
		for _, item := range event.Markets {
			if m, ok := item.toMarket(event.Description, event.Slug); ok {
				markets = append(markets, m)
			}
		}
	}
	return markets, nil
}

func (r rawMarket) toMarket(eventDescription, eventSlug string) (models.Market, bool) {
	if r.ID == "" {
		return models.Market{}, false
	}

	outcomes := make([]models.Outcome, 0, len(r.OutcomePrices))
	for i, price := range r.OutcomePrices {
		name := "Outcome " + strconv.Itoa(i+1)
		if i < len(r.Outcomes) {
			name = r.Outcomes[i]
		} else if len(r.Outcomes) == 0 && i < 2 {
			name = [2]string{"Yes", "No"}[i]
		}
		outcomes = append(outcomes, models.Outcome{Name: name, Price: price})
	}

	liquidity := float64(r.Liquidity)
	if liquidity == 0 {
		liquidity = float64(r.LiquidityNum)
	}
	volume := float64(r.Volume)
	if volume == 0 {
		volume = float64(r.VolumeNum)
	}

	description := r.Description
	if description == "" {
		description = eventDescription
	}
	// Prefer the parent event slug so multi-outcome markets link to the
	// event page.
	slug := eventSlug
	if slug == "" {
		slug = r.Slug
	}
	if slug == "" {
		slug = r.ConditionID
	}
	var slugPtr *string
	if slug != "" {
		slugPtr = &slug
	}

	return models.Market{
		ID:          r.ID,
		Question:    r.Question,
		Description: description,
		Outcomes:    outcomes,
		Liquidity:   liquidity,
		Volume:      volume,
		EndDate:     r.EndDate,
		Active:      true, // feed is queried with active=true closed=false
		Slug:        slugPtr,
	}, true
}
