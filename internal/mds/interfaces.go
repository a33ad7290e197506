// Package mds implements the Market Data Service: an in-process cache
// and resolver mapping (base, quote) asset queries to a current Price,
// backed by a key-value persistence layer and pluggable price
// providers.
package mds

import (
	"context"
	"time"

	"github.com/dcapal/dcapal-backend/internal/domain"
)

// Persistence is the key-value store the service depends on. The
// current deployment implements it against Redis — a hash namespace
// per entity plus a sorted-set index per asset kind — in
// internal/mds/store.
type Persistence interface {
	FindAsset(ctx context.Context, id string) (*domain.Asset, error)
	StoreAsset(ctx context.Context, asset domain.Asset) error
	LoadAssetsByType(ctx context.Context, kind domain.AssetKind) ([]domain.Asset, error)

	FindMarket(ctx context.Context, id string) (*domain.Market, error)
	FindMarkets(ctx context.Context, ids []string) ([]domain.Market, error)
	StoreMarket(ctx context.Context, market domain.Market) error
	UpdateMarketPrice(ctx context.Context, market domain.Market) error
	LoadMarkets(ctx context.Context) ([]domain.Market, error)

	GetLastFetched(ctx context.Context) (time.Time, error)
	SetLastFetched(ctx context.Context, ts time.Time) error
}

// Provider is the pluggable price-provider adapter (Kraken/CryptoWatch/
// Yahoo in production; bodies are out of scope, only the
// interface and the OHLC/error-mapping contract are specified here).
type Provider interface {
	// FetchAssets discovers assets and markets not already present in
	// known, for the Market Discovery worker.
	FetchAssets(ctx context.Context, known map[string]domain.Market) ([]domain.Asset, []domain.Market, error)

	// FetchMarketPrice fetches a fresh price for market as of now,
	// trying Minutes5 OHLC first, then Daily. A nil
	// Price with a nil error means "no data" (provider 404-equivalent).
	FetchMarketPrice(ctx context.Context, market domain.Market, now time.Time) (*domain.Price, error)
}
