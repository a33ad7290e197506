package mds

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dcapal/dcapal-backend/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// one returns a fresh 1.0 decimal.
func one() decimal.Decimal { return decimal.NewFromInt(1) }

// Service is the Market Data Service: an in-process cache and resolver
// mapping (base, quote) queries to a Price, single-flighted per key so
// concurrent callers coalesce onto one load.
type Service struct {
	cache       *cache
	persistence Persistence
	provider    Provider
	logger      *slog.Logger

	mktLoaders  singleflight.Group // key: market id
	pricerGroup singleflight.Group // key: "base|quote"
}

// NewService wires a Service from its collaborators.
func NewService(persistence Persistence, provider Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cache:       newCache(),
		persistence: persistence,
		provider:    provider,
		logger:      logger,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// GetAssetsByType
// ──────────────────────────────────────────────────────────────────────────────

// GetAssetsByType returns the cached asset list for kind, loading it
// from persistence on first use and storing it under the cache's write
// lock. The load itself holds no lock, so concurrent first calls each
// load from persistence.
func (s *Service) GetAssetsByType(ctx context.Context, kind domain.AssetKind) ([]domain.Asset, error) {
	if assets, ok := s.cache.getAssetsByType(kind); ok {
		return assets, nil
	}

	assets, err := s.persistence.LoadAssetsByType(ctx, kind)
	if err != nil {
		return nil, domain.NewError(domain.KindTransient, "mds.GetAssetsByType", string(kind), err)
	}
	s.cache.putAssetsByType(kind, assets)
	return assets, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// GetMarket
// ──────────────────────────────────────────────────────────────────────────────

// GetMarket serves a Market from cache when fresh, otherwise performs a
// single-flighted load from persistence.
func (s *Service) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	now := time.Now().UTC()

	if m, ok := s.cache.getMarket(id); ok && m.HasFreshPrice(now) {
		return m, nil
	}
	if s.cache.isMissing(id, now) {
		return domain.Market{}, domain.NewError(domain.KindNotFound, "mds.GetMarket", id, domain.ErrMarketNotFound)
	}

	v, err, _ := s.mktLoaders.Do(id, func() (interface{}, error) {
		return s.loadMarket(ctx, id)
	})

	if err != nil {
		// Fall back to a stale cached value rather than fail outright.
		if stale, ok := s.cache.getMarket(id); ok {
			s.logger.Warn("mds: serving stale market after refresh failure", "market", id, "err", err)
			return stale, nil
		}
		var de *domain.Error
		if errors.As(err, &de) {
			return domain.Market{}, err
		}
		return domain.Market{}, domain.NewError(domain.KindTransient, "mds.GetMarket", id, err)
	}

	return v.(domain.Market), nil
}

// loadMarket is the singleflight body for a market load: find-or-miss,
// cache on success, negative-cache on a confirmed miss.
func (s *Service) loadMarket(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.persistence.FindMarket(ctx, id)
	if err != nil {
		return domain.Market{}, domain.NewError(domain.KindTransient, "mds.loadMarket", id, err)
	}
	if m == nil {
		s.cache.markMissing(id, time.Now().UTC())
		return domain.Market{}, domain.NewError(domain.KindNotFound, "mds.loadMarket", id, domain.ErrMarketNotFound)
	}
	s.cache.clearMissing(id)
	s.cache.putMarket(*m)
	return *m, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// SetPrice
// ──────────────────────────────────────────────────────────────────────────────

// SetPrice replaces the price on the cached market and invalidates every
// synthetic rate that depended on it — the only mechanism that
// invalidates pricers.
func (s *Service) SetPrice(id string, price domain.Price) {
	m, ok := s.cache.getMarket(id)
	if !ok {
		m = domain.Market{ID: id}
	}
	s.cache.putMarket(m.WithPrice(price))

	evicted := s.cache.invalidateDeps(id)
	if len(evicted) > 0 {
		s.logger.Debug("mds: invalidated dependent rates", "market", id, "count", len(evicted))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// GetConversionRate
// ──────────────────────────────────────────────────────────────────────────────

// GetConversionRate resolves base->quote to a Price via direct market,
// inverse market, or USD triangulation, single-flighted per (base,quote)
// pair.
func (s *Service) GetConversionRate(ctx context.Context, baseID, quoteID string) (*domain.Price, error) {
	base := domain.NormalizeAssetID(baseID)
	quote := domain.NormalizeAssetID(quoteID)

	if base == quote {
		p := domain.NewPrice(one(), time.Now().UTC())
		return &p, nil
	}

	key := domain.NewPricerKey(base, quote)
	now := time.Now().UTC()

	if entry, ok := s.cache.getPricer(key); ok && !entry.isOutdated(now) {
		return entry.price, nil
	}

	sfKey := base + "|" + quote
	v, err, _ := s.pricerGroup.Do(sfKey, func() (interface{}, error) {
		return s.computeAndCache(ctx, key, base, quote)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Price), nil
}

// computeAndCache runs compute_conversion_rate and stores the result
// (positive or negative) in pricers, recording dep-set edges on success.
func (s *Service) computeAndCache(ctx context.Context, key domain.PricerKey, base, quote string) (*domain.Price, error) {
	price, deps, err := s.computeConversionRate(ctx, base, quote)
	now := time.Now().UTC()
	if err != nil {
		return nil, err
	}
	if price == nil {
		// No path succeeded: negative cache with the default TTL.
		s.cache.putPricer(key, pricerEntry{price: nil, ts: now})
		return nil, nil
	}

	for _, dep := range deps {
		s.cache.addDeps(key, []string{dep})
	}
	s.cache.putPricer(key, pricerEntry{price: price, ts: now})
	return price, nil
}

// computeConversionRate implements the direct/inverse/triangulation
// search for a conversion rate between two assets. It never touches the cache itself;
// callers decide how to store the result.
func (s *Service) computeConversionRate(ctx context.Context, base, quote string) (*domain.Price, []string, error) {
	// (a) direct market base+quote
	directID := domain.MarketID(base, quote)
	if m, err := s.GetMarket(ctx, directID); err == nil && m.Price != nil {
		p := *m.Price
		return &p, []string{directID}, nil
	}

	// (b) inverse market quote+base
	inverseID := domain.MarketID(quote, base)
	if m, err := s.GetMarket(ctx, inverseID); err == nil && m.Price != nil {
		inv := domain.NewPrice(one().Div(m.Price.Price), m.Price.Ts)
		return &inv, []string{inverseID}, nil
	}

	// (c) base -> usd, either direct or inverted
	baseUSD, baseUSDMarket, err := s.usdLeg(ctx, base)
	if err != nil || baseUSD == nil {
		return nil, nil, nil
	}

	// (d) usd -> quote preferred over (e) quote -> usd.
	usdQuoteID := domain.MarketID("usd", quote)
	if m, err := s.GetMarket(ctx, usdQuoteID); err == nil && m.Price != nil {
		result := baseUSD.Price.Mul(m.Price.Price)
		ts := earlier(baseUSD.Ts, m.Price.Ts)
		return &domain.Price{Price: result, Ts: ts}, []string{baseUSDMarket, usdQuoteID}, nil
	}

	quoteUSDID := domain.MarketID(quote, "usd")
	if m, err := s.GetMarket(ctx, quoteUSDID); err == nil && m.Price != nil {
		result := baseUSD.Price.Div(m.Price.Price)
		ts := earlier(baseUSD.Ts, m.Price.Ts)
		return &domain.Price{Price: result, Ts: ts}, []string{baseUSDMarket, quoteUSDID}, nil
	}

	// (f) no path succeeded.
	return nil, nil, nil
}

// usdLeg resolves asset->usd by trying the direct "asset+usd" market
// first, then the inverted "usd+asset" market. Returns the market id
// the result was sourced from, for dep-set bookkeeping.
func (s *Service) usdLeg(ctx context.Context, asset string) (*domain.Price, string, error) {
	directID := domain.MarketID(asset, "usd")
	if m, err := s.GetMarket(ctx, directID); err == nil && m.Price != nil {
		p := *m.Price
		return &p, directID, nil
	}
	inverseID := domain.MarketID("usd", asset)
	if m, err := s.GetMarket(ctx, inverseID); err == nil && m.Price != nil {
		inv := domain.NewPrice(one().Div(m.Price.Price), m.Price.Ts)
		return &inv, inverseID, nil
	}
	return nil, "", nil
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
