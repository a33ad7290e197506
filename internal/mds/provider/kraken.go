package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dcapal/dcapal-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// KrakenFetcher is a minimal Fetcher against Kraken's public REST API.
// The wire format itself is an external interface, not a core concern,
// so this client only extracts what Breaker needs and ignores the
// rest of each response.
type KrakenFetcher struct {
	baseURL string
	client  *http.Client
}

// NewKrakenFetcher builds a KrakenFetcher. baseURL == "" uses Kraken's
// public endpoint.
func NewKrakenFetcher(baseURL string, timeout time.Duration) *KrakenFetcher {
	if baseURL == "" {
		baseURL = "https://api.kraken.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KrakenFetcher{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

// Assets is not implemented by the public Kraken OHLC/ticker surface
// alone; a real deployment pairs this with an AssetPairs call. Left
// as a no-op discovery source until that endpoint is wired in.
func (f *KrakenFetcher) Assets(ctx context.Context, known map[string]domain.Market) ([]domain.Asset, []domain.Market, error) {
	return nil, nil, nil
}

// krakenInterval maps an OHLCFrequency to Kraken's interval-in-minutes
// query parameter.
func krakenInterval(freq domain.OHLCFrequency) int {
	if freq == domain.Daily {
		return 1440
	}
	return 5
}

type krakenOHLCResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

// OHLC fetches the most recent candle for market at the given
// frequency, covering [start, end].
func (f *KrakenFetcher) OHLC(ctx context.Context, market domain.Market, freq domain.OHLCFrequency, start, end time.Time) (*domain.Price, int, error) {
	pair := market.Base.ID + market.Quote.ID
	q := url.Values{}
	q.Set("pair", pair)
	q.Set("interval", strconv.Itoa(krakenInterval(freq)))
	q.Set("since", strconv.FormatInt(start.Unix(), 10))

	reqURL := fmt.Sprintf("%s/0/public/OHLC?%s", f.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("kraken: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("kraken: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("kraken: unexpected status")
	}

	var body krakenOHLCResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("kraken: decode response: %w", err)
	}
	if len(body.Error) > 0 {
		return nil, http.StatusNotFound, fmt.Errorf("kraken: %v", body.Error)
	}

	raw, ok := body.Result[pair]
	if !ok {
		return nil, http.StatusNotFound, nil
	}

	var candles [][]interface{}
	if err := json.Unmarshal(raw, &candles); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("kraken: decode candles: %w", err)
	}
	if len(candles) == 0 {
		return nil, http.StatusNotFound, nil
	}

	last := candles[len(candles)-1]
	if len(last) < 5 {
		return nil, resp.StatusCode, fmt.Errorf("kraken: malformed candle")
	}
	closeStr, ok := last[4].(string)
	if !ok {
		return nil, resp.StatusCode, fmt.Errorf("kraken: malformed close price")
	}
	price, err := decimal.NewFromString(closeStr)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("kraken: parse close price: %w", err)
	}

	result := domain.NewPrice(price, end)
	return &result, resp.StatusCode, nil
}
