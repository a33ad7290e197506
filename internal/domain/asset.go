// Package domain defines the core entities shared by the market data
// service and the portfolio rebalancer: assets, markets, prices, and the
// kind-carrying error type.
package domain

import "strings"

// AssetKind distinguishes the two asset variants DcaPal tracks. A given
// id is always the same kind within one process — an id is never both
// fiat and crypto.
type AssetKind string

const (
	AssetFiat   AssetKind = "fiat"
	AssetCrypto AssetKind = "crypto"
)

// Asset is a tagged Fiat/Crypto identifier. Identity is ID: two Asset
// values with the same ID are always the same asset.
type Asset struct {
	ID     string    `json:"id"`
	Symbol string    `json:"symbol"`
	Kind   AssetKind `json:"kind"`
}

// NewFiatAsset builds a Fiat asset with a lower-cased canonical id.
func NewFiatAsset(id, symbol string) Asset {
	return Asset{ID: strings.ToLower(id), Symbol: symbol, Kind: AssetFiat}
}

// NewCryptoAsset builds a Crypto asset with a lower-cased canonical id.
func NewCryptoAsset(id, symbol string) Asset {
	return Asset{ID: strings.ToLower(id), Symbol: symbol, Kind: AssetCrypto}
}

// IsFiat reports whether the asset is a Fiat variant.
func (a Asset) IsFiat() bool { return a.Kind == AssetFiat }

// IsCrypto reports whether the asset is a Crypto variant.
func (a Asset) IsCrypto() bool { return a.Kind == AssetCrypto }

// normalizedAssetIDs maps staking/wrapped variants to the canonical id
// used for market lookups (e.g. liquid-staked ETH derivatives resolve
// through the plain "eth" market). The normalization table is fixed
// at compile time.
var normalizedAssetIDs = map[string]string{
	"eth2":   "eth",
	"eth2.s": "eth",
	"steth":  "eth",
	"wbtc":   "btc",
	"wsteth": "eth",
}

// NormalizeAssetID collapses a wrapped/staking-derivative id to its
// canonical underlying id, used before any market or pricer lookup so
// that "eth2" and "eth2.s" queries both hit the "eth" market.
func NormalizeAssetID(id string) string {
	id = strings.ToLower(id)
	if canon, ok := normalizedAssetIDs[id]; ok {
		return canon
	}
	return id
}

// PricerKey is the (base, quote) key used for the synthetic rate cache
// (pricers) and its dep-set index (price_deps) in the market data
// service. Both legs are normalized so "eth2usd" and "ethusd" share one
// cache entry.
type PricerKey struct {
	Base  string
	Quote string
}

// NewPricerKey builds a normalized PricerKey from two asset ids.
func NewPricerKey(base, quote string) PricerKey {
	return PricerKey{Base: NormalizeAssetID(base), Quote: NormalizeAssetID(quote)}
}

// MarketID returns the deterministic market id for a (base, quote) pair:
// the concatenation of both normalized asset ids.
func MarketID(baseID, quoteID string) string {
	return NormalizeAssetID(baseID) + NormalizeAssetID(quoteID)
}

// MarketPair returns the uppercase "BASE/QUOTE" display form.
func MarketPair(baseID, quoteID string) string {
	return strings.ToUpper(NormalizeAssetID(baseID)) + "/" + strings.ToUpper(NormalizeAssetID(quoteID))
}
