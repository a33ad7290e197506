package mds

import (
	"sync"
	"time"

	"github.com/dcapal/dcapal-backend/internal/domain"
)

// negativeCacheTTL is the default validity window for a "no rate found"
// pricer entry, preventing repeated lookups from stampeding the
// provider on a missing route.
const negativeCacheTTL = 5 * time.Minute

// pricerEntry is one cached synthetic conversion rate. Price is nil for
// a negative ("no rate available") entry; both positive and negative
// entries age out on the same 5-minute bucket rule as a domain.Price.
type pricerEntry struct {
	price *domain.Price
	ts    time.Time
}

func (e pricerEntry) isOutdated(now time.Time) bool {
	return domain.Floor5(now).After(domain.Floor5(e.ts))
}

// cache holds every piece of shared, mutable state the resolver reads
// and writes. Each field lives behind its own mutex so that critical
// sections stay strictly bounded: read the value, clone the reference,
// release the lock, then await.
type cache struct {
	marketsMu sync.RWMutex
	markets   map[string]domain.Market // MarketId -> most recent snapshot

	pricersMu sync.RWMutex
	pricers   map[domain.PricerKey]pricerEntry

	depsMu sync.RWMutex
	// priceDeps is the reverse index: which (base,quote) pricer entries
	// depend on a given market id. A flat map into a set, not a graph —
	// all mutation funnels through setPrice.
	priceDeps map[string]map[domain.PricerKey]struct{}

	assetsMu     sync.RWMutex
	fiatAssets   []domain.Asset
	fiatLoaded   bool
	cryptoAssets []domain.Asset
	cryptoLoaded bool

	missingMu sync.RWMutex
	// missingMarkets caches a negative "market not found" result (e.g. a
	// persistence 404) for negativeCacheTTL, so repeated lookups do not
	// stampede the store.
	missingMarkets map[string]time.Time
}

func newCache() *cache {
	return &cache{
		markets:        make(map[string]domain.Market),
		pricers:        make(map[domain.PricerKey]pricerEntry),
		priceDeps:      make(map[string]map[domain.PricerKey]struct{}),
		missingMarkets: make(map[string]time.Time),
	}
}

// isMissing reports whether id was recently marked as not found and
// that negative result has not yet expired.
func (c *cache) isMissing(id string, now time.Time) bool {
	c.missingMu.RLock()
	defer c.missingMu.RUnlock()
	markedAt, ok := c.missingMarkets[id]
	if !ok {
		return false
	}
	return now.Sub(markedAt) < negativeCacheTTL
}

// markMissing records that id was not found as of now.
func (c *cache) markMissing(id string, now time.Time) {
	c.missingMu.Lock()
	c.missingMarkets[id] = now
	c.missingMu.Unlock()
}

// clearMissing removes any negative-cache entry for id, used once id is
// successfully loaded.
func (c *cache) clearMissing(id string) {
	c.missingMu.Lock()
	delete(c.missingMarkets, id)
	c.missingMu.Unlock()
}

// getMarket returns the cached market and whether it was present.
func (c *cache) getMarket(id string) (domain.Market, bool) {
	c.marketsMu.RLock()
	defer c.marketsMu.RUnlock()
	m, ok := c.markets[id]
	return m, ok
}

// putMarket inserts or replaces a market snapshot.
func (c *cache) putMarket(m domain.Market) {
	c.marketsMu.Lock()
	c.markets[m.ID] = m
	c.marketsMu.Unlock()
}

// getPricer returns the cached synthetic rate entry and whether one is
// present (outdated or not — callers check isOutdated themselves).
func (c *cache) getPricer(key domain.PricerKey) (pricerEntry, bool) {
	c.pricersMu.RLock()
	defer c.pricersMu.RUnlock()
	e, ok := c.pricers[key]
	return e, ok
}

func (c *cache) putPricer(key domain.PricerKey, e pricerEntry) {
	c.pricersMu.Lock()
	c.pricers[key] = e
	c.pricersMu.Unlock()
}

// addDeps records that key's computed rate depends on each market id in
// deps, so a future setPrice(dep, _) invalidates key.
func (c *cache) addDeps(key domain.PricerKey, deps []string) {
	c.depsMu.Lock()
	defer c.depsMu.Unlock()
	for _, dep := range deps {
		set, ok := c.priceDeps[dep]
		if !ok {
			set = make(map[domain.PricerKey]struct{})
			c.priceDeps[dep] = set
		}
		set[key] = struct{}{}
	}
}

// invalidateDeps atomically pops marketID's dep-set and evicts every
// listed pricer entry. Returns the evicted keys for logging.
func (c *cache) invalidateDeps(marketID string) []domain.PricerKey {
	c.depsMu.Lock()
	set := c.priceDeps[marketID]
	delete(c.priceDeps, marketID)
	c.depsMu.Unlock()

	if len(set) == 0 {
		return nil
	}

	evicted := make([]domain.PricerKey, 0, len(set))
	c.pricersMu.Lock()
	for key := range set {
		delete(c.pricers, key)
		evicted = append(evicted, key)
	}
	c.pricersMu.Unlock()
	return evicted
}

// getAssetsByType returns the cached list for kind and whether it was
// loaded yet.
func (c *cache) getAssetsByType(kind domain.AssetKind) ([]domain.Asset, bool) {
	c.assetsMu.RLock()
	defer c.assetsMu.RUnlock()
	if kind == domain.AssetFiat {
		return c.fiatAssets, c.fiatLoaded
	}
	return c.cryptoAssets, c.cryptoLoaded
}

func (c *cache) putAssetsByType(kind domain.AssetKind, assets []domain.Asset) {
	c.assetsMu.Lock()
	defer c.assetsMu.Unlock()
	if kind == domain.AssetFiat {
		c.fiatAssets = assets
		c.fiatLoaded = true
		return
	}
	c.cryptoAssets = assets
	c.cryptoLoaded = true
}
