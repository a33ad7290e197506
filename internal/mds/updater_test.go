package mds

import (
	"context"
	"testing"
	"time"

	"github.com/dcapal/dcapal-backend/internal/domain"
	"github.com/shopspring/decimal"
)

func TestUpdater_Tick_RefreshesEveryKnownMarket(t *testing.T) {
	persistence := newFakePersistence()
	m1 := domain.NewMarket(domain.NewCryptoAsset("btc", "Bitcoin"), domain.NewFiatAsset("usd", "US Dollar"))
	m2 := domain.NewMarket(domain.NewCryptoAsset("eth", "Ethereum"), domain.NewFiatAsset("usd", "US Dollar"))
	persistence.markets[m1.ID] = m1
	persistence.markets[m2.ID] = m2

	newP1 := domain.NewPrice(decimal.NewFromInt(51000), time.Now().UTC())
	newP2 := domain.NewPrice(decimal.NewFromInt(2100), time.Now().UTC())
	provider := &fakeProvider{prices: map[string]domain.Price{m1.ID: newP1, m2.ID: newP2}}

	svc := NewService(persistence, provider, nil)
	u := NewUpdater(svc, time.Minute, nil)
	u.throttle = 0

	u.tick(context.Background())

	if got := persistence.markets[m1.ID]; got.Price == nil || !got.Price.Price.Equal(decimal.NewFromInt(51000)) {
		t.Errorf("market %s price = %+v, want 51000", m1.ID, got.Price)
	}
	if got := persistence.markets[m2.ID]; got.Price == nil || !got.Price.Price.Equal(decimal.NewFromInt(2100)) {
		t.Errorf("market %s price = %+v, want 2100", m2.ID, got.Price)
	}

	if cached, ok := svc.cache.getMarket(m1.ID); !ok || !cached.Price.Price.Equal(decimal.NewFromInt(51000)) {
		t.Error("expected refreshOne to push the new price through SetPrice into the cache")
	}
}

func TestUpdater_RefreshOne_NoDataLeavesMarketUntouched(t *testing.T) {
	persistence := newFakePersistence()
	m := domain.NewMarket(domain.NewCryptoAsset("btc", "Bitcoin"), domain.NewFiatAsset("usd", "US Dollar")).
		WithPrice(domain.NewPrice(decimal.NewFromInt(50000), time.Now().UTC()))
	persistence.markets[m.ID] = m

	provider := &fakeProvider{} // no configured price: FetchMarketPrice returns nil, nil
	svc := NewService(persistence, provider, nil)
	u := NewUpdater(svc, time.Minute, nil)

	u.refreshOne(context.Background(), m)

	got := persistence.markets[m.ID]
	if !got.Price.Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("market price should be unchanged when the provider has no data, got %+v", got.Price)
	}
}

func TestUpdater_RefreshOne_ProviderErrorLeavesMarketUntouched(t *testing.T) {
	persistence := newFakePersistence()
	m := domain.NewMarket(domain.NewCryptoAsset("btc", "Bitcoin"), domain.NewFiatAsset("usd", "US Dollar")).
		WithPrice(domain.NewPrice(decimal.NewFromInt(50000), time.Now().UTC()))
	persistence.markets[m.ID] = m

	provider := &fakeProvider{err: domain.NewError(domain.KindTransient, "provider.OHLC", "timeout", nil)}
	svc := NewService(persistence, provider, nil)
	u := NewUpdater(svc, time.Minute, nil)

	u.refreshOne(context.Background(), m)

	got := persistence.markets[m.ID]
	if !got.Price.Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("market price should be unchanged on a provider error, got %+v", got.Price)
	}
}

func TestUpdater_Tick_StopsEarlyWhenContextCancelled(t *testing.T) {
	persistence := newFakePersistence()
	m := domain.NewMarket(domain.NewCryptoAsset("btc", "Bitcoin"), domain.NewFiatAsset("usd", "US Dollar"))
	persistence.markets[m.ID] = m

	provider := &fakeProvider{prices: map[string]domain.Price{m.ID: domain.NewPrice(decimal.NewFromInt(51000), time.Now().UTC())}}
	svc := NewService(persistence, provider, nil)
	u := NewUpdater(svc, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u.tick(ctx)

	if got := persistence.markets[m.ID]; got.Price != nil {
		t.Error("tick should not refresh any market once the context is already cancelled")
	}
}
