// Package market supplies the two inputs the profitability strategy needs:
// a weighted rental cost from the rental marketplace statistics API and the
// asset's price in the reference currency, derived from two chained
// exchange tickers.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrMissingCredentials is returned before any network call when a required
// API credential is absent.
var ErrMissingCredentials = errors.New("missing market data credentials")

// Gateway provides the market inputs for a profitability evaluation.
type Gateway interface {
	// CheckCredentials fails fast with ErrMissingCredentials when any
	// required credential is absent, before any network call is attempted.
	CheckCredentials() error
	// WeightedRentalCost returns the blended rental cost across market
	// listings, in the reference currency per hash per hour.
	WeightedRentalCost(ctx context.Context) (float64, error)
	// AssetPriceUSD returns the mined asset's spot price in USD, derived by
	// chaining the asset->BTC and BTC->USD tickers.
	AssetPriceUSD(ctx context.Context) (float64, error)
}

// Credentials holds the two required credential pairs.
type Credentials struct {
	MRRAPIKey      string
	MRRAPISecret   string
	ExchangeAPIKey string
	ExchangeAPIID  string
}

// HTTPGateway is the production Gateway backed by the marketplace stats API
// and an exchange ticker API.
type HTTPGateway struct {
	creds           Credentials
	marketBaseURL   string
	exchangeBaseURL string

	// Ticker market symbols, chained to derive the USD price.
	QuoteMarket     string // asset priced in BTC, e.g. "FLO-BTC"
	ReferenceMarket string // BTC priced in USD, e.g. "BTC-USD"

	client *http.Client
}

func NewHTTPGateway(creds Credentials, marketBaseURL, exchangeBaseURL string) *HTTPGateway {
	return &HTTPGateway{
		creds:           creds,
		marketBaseURL:   marketBaseURL,
		exchangeBaseURL: exchangeBaseURL,
		QuoteMarket:     "FLO-BTC",
		ReferenceMarket: "BTC-USD",
		client:          &http.Client{Timeout: 15 * time.Second},
	}
}

// CheckCredentials verifies both credential pairs are configured.
func (g *HTTPGateway) CheckCredentials() error {
	if g.creds.MRRAPIKey == "" || g.creds.MRRAPISecret == "" {
		return fmt.Errorf("%w: market rental API key/secret not set", ErrMissingCredentials)
	}
	if g.creds.ExchangeAPIKey == "" || g.creds.ExchangeAPIID == "" {
		return fmt.Errorf("%w: hashrate exchange API key/ID not set", ErrMissingCredentials)
	}
	return nil
}

type rentalStatsResponse struct {
	Success bool `json:"success"`
	Data    struct {
		// Reference currency per hash per hour, blended across listings.
		RentalCost float64 `json:"rental_cost"`
	} `json:"data"`
}

// WeightedRentalCost fetches the blended rental cost. It fails fast with
// ErrMissingCredentials before any network call when the marketplace
// credential pair is not configured.
func (g *HTTPGateway) WeightedRentalCost(ctx context.Context) (float64, error) {
	if g.creds.MRRAPIKey == "" || g.creds.MRRAPISecret == "" {
		return 0, fmt.Errorf("%w: market rental API key/secret not set", ErrMissingCredentials)
	}

	var stats rentalStatsResponse
	err := g.doJSON(ctx, g.marketBaseURL+"/rig/price", map[string]string{
		"x-api-key":    g.creds.MRRAPIKey,
		"x-api-secret": g.creds.MRRAPISecret,
	}, &stats)
	if err != nil {
		return 0, fmt.Errorf("weighted rental cost: %w", err)
	}
	if !stats.Success {
		return 0, fmt.Errorf("weighted rental cost: marketplace reported failure")
	}
	return stats.Data.RentalCost, nil
}

type tickerResponse struct {
	LastTradeRate string `json:"lastTradeRate"`
}

// AssetPriceUSD chains the asset->BTC and BTC->USD tickers and multiplies
// them. Both calls must complete; either failure fails the whole derivation.
func (g *HTTPGateway) AssetPriceUSD(ctx context.Context) (float64, error) {
	if g.creds.ExchangeAPIKey == "" || g.creds.ExchangeAPIID == "" {
		return 0, fmt.Errorf("%w: hashrate exchange API key/ID not set", ErrMissingCredentials)
	}

	quote, err := g.lastTradeRate(ctx, g.QuoteMarket)
	if err != nil {
		return 0, fmt.Errorf("asset price: %w", err)
	}
	reference, err := g.lastTradeRate(ctx, g.ReferenceMarket)
	if err != nil {
		return 0, fmt.Errorf("asset price: %w", err)
	}
	return quote * reference, nil
}

func (g *HTTPGateway) lastTradeRate(ctx context.Context, symbol string) (float64, error) {
	var tick tickerResponse
	err := g.doJSON(ctx, g.exchangeBaseURL+"/markets/"+symbol+"/ticker", map[string]string{
		"Api-Key": g.creds.ExchangeAPIKey,
		"Api-Id":  g.creds.ExchangeAPIID,
	}, &tick)
	if err != nil {
		return 0, fmt.Errorf("ticker %s: %w", symbol, err)
	}
	rate, err := strconv.ParseFloat(tick.LastTradeRate, 64)
	if err != nil {
		return 0, fmt.Errorf("ticker %s: bad rate %q: %w", symbol, tick.LastTradeRate, err)
	}
	return rate, nil
}

// doJSON performs a GET with retries on transport errors and 5xx responses.
func (g *HTTPGateway) doJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(250*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := g.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("GET %s: status %d", url, resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("GET %s: decode: %w", url, err)
		}
		return nil
	})
}
