package mds

import (
	"context"
	"testing"
	"time"

	"github.com/dcapal/dcapal-backend/internal/domain"
	"github.com/shopspring/decimal"
)

func TestDiscovery_Tick_NoopIfAlreadyRanToday(t *testing.T) {
	persistence := newFakePersistence()
	persistence.lastFetched = time.Now().UTC()
	provider := &fakeProvider{discoveredAssets: []domain.Asset{domain.NewCryptoAsset("sol", "Solana")}}

	svc := NewService(persistence, provider, nil)
	d := NewDiscovery(svc, time.Minute, nil)

	d.tick(context.Background())

	if len(persistence.storedAssets) != 0 {
		t.Error("discovery should not have stored anything when it already ran today")
	}
}

func TestDiscovery_Tick_StoresNewAssetsAndMarketsWithInitialPrice(t *testing.T) {
	persistence := newFakePersistence()
	persistence.lastFetched = time.Now().Add(-48 * time.Hour).UTC()

	sol := domain.NewCryptoAsset("sol", "Solana")
	market := domain.NewMarket(sol, domain.NewFiatAsset("usd", "US Dollar"))
	price := domain.NewPrice(decimal.NewFromInt(150), time.Now().UTC())

	provider := &fakeProvider{
		discoveredAssets:  []domain.Asset{sol},
		discoveredMarkets: []domain.Market{market},
		prices:            map[string]domain.Price{market.ID: price},
	}

	svc := NewService(persistence, provider, nil)
	d := NewDiscovery(svc, time.Minute, nil)

	d.tick(context.Background())

	stored, ok := persistence.markets[market.ID]
	if !ok {
		t.Fatalf("expected market %s to be stored", market.ID)
	}
	if stored.Price == nil || !stored.Price.Price.Equal(decimal.NewFromInt(150)) {
		t.Errorf("stored market price = %+v, want 150", stored.Price)
	}

	if cached, ok := svc.cache.getMarket(market.ID); !ok || cached.Price == nil {
		t.Error("expected SetPrice to have cached the new market's price")
	}

	if !persistence.lastFetched.After(time.Now().Add(-time.Minute)) {
		t.Error("expected last-fetched timestamp to be bumped to now")
	}
}

func TestDiscovery_Tick_MissingInitialPriceDoesNotBlockOtherMarkets(t *testing.T) {
	persistence := newFakePersistence()
	persistence.lastFetched = time.Now().Add(-48 * time.Hour).UTC()

	m1 := domain.NewMarket(domain.NewCryptoAsset("sol", "Solana"), domain.NewFiatAsset("usd", "US Dollar"))
	m2 := domain.NewMarket(domain.NewCryptoAsset("ada", "Cardano"), domain.NewFiatAsset("usd", "US Dollar"))
	price2 := domain.NewPrice(decimal.NewFromFloat(0.5), time.Now().UTC())

	provider := &fakeProvider{
		discoveredMarkets: []domain.Market{m1, m2},
		prices:            map[string]domain.Price{m2.ID: price2},
	}

	svc := NewService(persistence, provider, nil)
	d := NewDiscovery(svc, time.Minute, nil)

	d.tick(context.Background())

	if _, ok := persistence.markets[m1.ID]; !ok {
		t.Errorf("expected market %s to be stored even without an initial price", m1.ID)
	}
	if stored, ok := persistence.markets[m2.ID]; !ok || stored.Price == nil {
		t.Errorf("expected market %s to be stored with its initial price", m2.ID)
	}
}

func TestDiscovery_Tick_FetchAssetsErrorLeavesLastFetchedUntouched(t *testing.T) {
	persistence := newFakePersistence()
	stale := time.Now().Add(-48 * time.Hour).UTC()
	persistence.lastFetched = stale

	provider := &fakeProvider{fetchAssetsErr: domain.NewError(domain.KindTransient, "provider.FetchAssets", "timeout", nil)}
	svc := NewService(persistence, provider, nil)
	d := NewDiscovery(svc, time.Minute, nil)

	d.tick(context.Background())

	if !persistence.lastFetched.Equal(stale) {
		t.Error("last-fetched should not advance when FetchAssets fails")
	}
}
