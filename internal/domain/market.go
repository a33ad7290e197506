package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// priceValidityWindow is the fixed TTL a Price is considered fresh for,
// aligned to 5-minute wall-clock buckets.
const priceValidityWindow = 5 * time.Minute

// Floor5 truncates t down to the nearest 5-minute wall-clock boundary.
func Floor5(t time.Time) time.Time {
	return t.Truncate(priceValidityWindow)
}

// StartOfDay truncates t down to midnight UTC of the same calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ──────────────────────────────────────────────────────────────────────────────
// Price
// ──────────────────────────────────────────────────────────────────────────────

// Price is a quote for some market at a point in time, valid for a fixed
// 5-minute bucket.
type Price struct {
	Price decimal.Decimal `json:"price"`
	Ts    time.Time       `json:"ts"`
}

// NewPrice builds a Price, normalizing Ts to UTC.
func NewPrice(price decimal.Decimal, ts time.Time) Price {
	return Price{Price: price, Ts: ts.UTC()}
}

// IsOutdated reports whether now falls in a strictly later 5-minute
// bucket than the price's timestamp.
func (p Price) IsOutdated(now time.Time) bool {
	return Floor5(now).After(Floor5(p.Ts))
}

// TTL returns the remaining validity of the price as of now, clamped to
// zero once it has expired.
func (p Price) TTL(now time.Time) time.Duration {
	remaining := p.Ts.Add(priceValidityWindow).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// Market maps a (base, quote) asset pair to its most recently observed
// Price. ID is deterministic from the two asset ids.
type Market struct {
	ID    string `json:"id"`
	Pair  string `json:"pair"`
	Base  Asset  `json:"base"`
	Quote Asset  `json:"quote"`
	Price *Price `json:"price,omitempty"`
}

// NewMarket builds a Market for the given base/quote assets with no
// price set yet.
func NewMarket(base, quote Asset) Market {
	return Market{
		ID:    MarketID(base.ID, quote.ID),
		Pair:  MarketPair(base.ID, quote.ID),
		Base:  base,
		Quote: quote,
	}
}

// IsFiat reports whether both legs of the market are fiat currencies.
func (m Market) IsFiat() bool {
	return m.Base.IsFiat() && m.Quote.IsFiat()
}

// HasFreshPrice reports whether the market carries a price that is not
// outdated as of now.
func (m Market) HasFreshPrice(now time.Time) bool {
	return m.Price != nil && !m.Price.IsOutdated(now)
}

// WithPrice returns a copy of the market with its price replaced.
func (m Market) WithPrice(p Price) Market {
	m.Price = &p
	return m
}

// ──────────────────────────────────────────────────────────────────────────────
// OHLCFrequency
// ──────────────────────────────────────────────────────────────────────────────

// OHLCFrequency selects the candle granularity used when fetching a
// fresh price from a provider.
type OHLCFrequency int

const (
	Minutes5 OHLCFrequency = iota
	Daily
)

// ProviderPeriod returns the provider-facing period code for the
// frequency, e.g. for building a Kraken/CryptoWatch OHLC request.
func (f OHLCFrequency) ProviderPeriod() string {
	switch f {
	case Minutes5:
		return "5m"
	case Daily:
		return "1d"
	default:
		return ""
	}
}

// Range returns the [start, end] OHLC window to request for ts.
//
//	Minutes5: [floor5(ts) - 60min, floor5(ts)]
//	Daily:    [start_of_day(ts) - 1d, ts]
func (f OHLCFrequency) Range(ts time.Time) (start, end time.Time) {
	switch f {
	case Minutes5:
		bucket := Floor5(ts)
		return bucket.Add(-60 * time.Minute), bucket
	case Daily:
		day := StartOfDay(ts)
		return day.Add(-24 * time.Hour), ts
	default:
		return ts, ts
	}
}

// String implements fmt.Stringer for logging.
func (f OHLCFrequency) String() string {
	switch f {
	case Minutes5:
		return "Minutes5"
	case Daily:
		return "Daily"
	default:
		return "Unknown"
	}
}
