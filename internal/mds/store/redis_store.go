// Package store implements mds.Persistence against Redis: a hash
// namespace per entity plus a sorted-set index per asset kind.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dcapal/dcapal-backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	assetHashPrefix  = "dcapal:asset:"   // asset id -> JSON blob
	marketHashPrefix = "dcapal:market:"  // market id -> JSON blob
	assetIndexPrefix = "dcapal:assets:"  // sorted set, per AssetKind
	marketIndexKey   = "dcapal:markets"  // sorted set of all market ids
	lastFetchedKey   = "dcapal:lastfetch"
)

// RedisStore implements mds.Persistence on top of a redis.Client.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an already-configured *redis.Client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// ──────────────────────────────────────────────────────────────────────────────
// Assets
// ──────────────────────────────────────────────────────────────────────────────

func (s *RedisStore) FindAsset(ctx context.Context, id string) (*domain.Asset, error) {
	raw, err := s.rdb.Get(ctx, assetHashPrefix+id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get asset %s: %w", id, err)
	}
	var a domain.Asset
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("redis: decode asset %s: %w", id, err)
	}
	return &a, nil
}

func (s *RedisStore) StoreAsset(ctx context.Context, asset domain.Asset) error {
	blob, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("redis: encode asset %s: %w", asset.ID, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, assetHashPrefix+asset.ID, blob, 0)
	pipe.ZAdd(ctx, assetIndexPrefix+string(asset.Kind), redis.Z{Score: 0, Member: asset.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: store asset %s: %w", asset.ID, err)
	}
	return nil
}

func (s *RedisStore) LoadAssetsByType(ctx context.Context, kind domain.AssetKind) ([]domain.Asset, error) {
	ids, err := s.rdb.ZRange(ctx, assetIndexPrefix+string(kind), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list assets of kind %s: %w", kind, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = assetHashPrefix + id
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: mget assets of kind %s: %w", kind, err)
	}

	assets := make([]domain.Asset, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		var a domain.Asset
		if err := json.Unmarshal([]byte(str), &a); err != nil {
			return nil, fmt.Errorf("redis: decode asset in kind %s: %w", kind, err)
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Markets
// ──────────────────────────────────────────────────────────────────────────────

func (s *RedisStore) FindMarket(ctx context.Context, id string) (*domain.Market, error) {
	raw, err := s.rdb.Get(ctx, marketHashPrefix+id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get market %s: %w", id, err)
	}
	var m domain.Market
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("redis: decode market %s: %w", id, err)
	}
	return &m, nil
}

func (s *RedisStore) FindMarkets(ctx context.Context, ids []string) ([]domain.Market, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = marketHashPrefix + id
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: mget markets: %w", err)
	}

	markets := make([]domain.Market, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		var m domain.Market
		if err := json.Unmarshal([]byte(str), &m); err != nil {
			return nil, fmt.Errorf("redis: decode market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, nil
}

func (s *RedisStore) StoreMarket(ctx context.Context, market domain.Market) error {
	return s.saveMarket(ctx, market, true)
}

func (s *RedisStore) UpdateMarketPrice(ctx context.Context, market domain.Market) error {
	return s.saveMarket(ctx, market, false)
}

func (s *RedisStore) saveMarket(ctx context.Context, market domain.Market, indexNew bool) error {
	blob, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: encode market %s: %w", market.ID, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, marketHashPrefix+market.ID, blob, 0)
	if indexNew {
		pipe.ZAdd(ctx, marketIndexKey, redis.Z{Score: 0, Member: market.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save market %s: %w", market.ID, err)
	}
	return nil
}

func (s *RedisStore) LoadMarkets(ctx context.Context) ([]domain.Market, error) {
	ids, err := s.rdb.ZRange(ctx, marketIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list markets: %w", err)
	}
	return s.FindMarkets(ctx, ids)
}

// ──────────────────────────────────────────────────────────────────────────────
// Last-fetched watermark
// ──────────────────────────────────────────────────────────────────────────────

func (s *RedisStore) GetLastFetched(ctx context.Context) (time.Time, error) {
	raw, err := s.rdb.Get(ctx, lastFetchedKey).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("redis: get last-fetched: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("redis: decode last-fetched: %w", err)
	}
	return ts, nil
}

func (s *RedisStore) SetLastFetched(ctx context.Context, ts time.Time) error {
	if err := s.rdb.Set(ctx, lastFetchedKey, ts.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("redis: set last-fetched: %w", err)
	}
	return nil
}
