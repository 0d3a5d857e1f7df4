package currencies

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

const rateEndpoint = "http://api.fixer.io/latest"

// RateClient fetches live exchange rates. Stored prices are never updated
// automatically; callers decide what to do with the quote.
type RateClient struct {
	HTTP *http.Client
}

func NewRateClient() *RateClient {
	return &RateClient{HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (rc *RateClient) Rate(ctx context.Context, base, buy Currency) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("base", base.ISO4217)
	q.Set("symbols", buy.ISO4217)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rateEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := rc.HTTP.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate lookup: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, err
	}

	rate, ok := body.Rates[buy.ISO4217]
	if !ok {
		return decimal.Zero, fmt.Errorf("rate lookup: no rate for %s", buy.ISO4217)
	}
	return rate, nil
}
