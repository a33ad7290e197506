package domain_test

import (
	"testing"
	"time"

	"github.com/dcapal/dcapal-backend/internal/domain"
	"github.com/shopspring/decimal"
)

func TestFloor5_TruncatesToBucket(t *testing.T) {
	ts := time.Date(2026, 1, 1, 10, 7, 30, 0, time.UTC)
	got := domain.Floor5(ts)
	want := time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Floor5(%s) = %s, want %s", ts, got, want)
	}
}

func TestStartOfDay_TruncatesToMidnightUTC(t *testing.T) {
	ts := time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC)
	got := domain.StartOfDay(ts)
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("StartOfDay(%s) = %s, want %s", ts, got, want)
	}
}

func TestPrice_IsOutdated(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 2, 0, 0, time.UTC)
	p := domain.NewPrice(decimal.NewFromInt(100), base)

	sameBucket := base.Add(2 * time.Minute)
	if p.IsOutdated(sameBucket) {
		t.Errorf("price should still be fresh within the same 5-minute bucket")
	}

	nextBucket := base.Add(6 * time.Minute)
	if !p.IsOutdated(nextBucket) {
		t.Errorf("price should be outdated once a later 5-minute bucket starts")
	}
}

func TestPrice_TTL_ClampsAtZero(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	p := domain.NewPrice(decimal.NewFromInt(100), base)

	longAfter := base.Add(time.Hour)
	if ttl := p.TTL(longAfter); ttl != 0 {
		t.Errorf("TTL() after expiry = %s, want 0", ttl)
	}
}

func TestMarket_WithPrice_DoesNotMutateOriginal(t *testing.T) {
	base := domain.NewMarket(domain.NewCryptoAsset("eth", "Ethereum"), domain.NewFiatAsset("usd", "US Dollar"))
	priced := base.WithPrice(domain.NewPrice(decimal.NewFromInt(2000), time.Now()))

	if base.Price != nil {
		t.Errorf("original market should remain priceless after WithPrice")
	}
	if priced.Price == nil {
		t.Fatalf("WithPrice result should carry a price")
	}
}

func TestMarket_IsFiat(t *testing.T) {
	fiatMarket := domain.NewMarket(domain.NewFiatAsset("eur", "Euro"), domain.NewFiatAsset("usd", "US Dollar"))
	if !fiatMarket.IsFiat() {
		t.Errorf("EUR/USD should be a fiat market")
	}

	mixedMarket := domain.NewMarket(domain.NewCryptoAsset("btc", "Bitcoin"), domain.NewFiatAsset("usd", "US Dollar"))
	if mixedMarket.IsFiat() {
		t.Errorf("BTC/USD should not be a fiat market")
	}
}

func TestOHLCFrequency_Range(t *testing.T) {
	ts := time.Date(2026, 1, 1, 10, 7, 0, 0, time.UTC)

	start, end := domain.Minutes5.Range(ts)
	wantEnd := domain.Floor5(ts)
	if !end.Equal(wantEnd) || !start.Equal(wantEnd.Add(-60*time.Minute)) {
		t.Errorf("Minutes5.Range(%s) = [%s, %s], want [%s, %s]", ts, start, end, wantEnd.Add(-60*time.Minute), wantEnd)
	}

	dStart, dEnd := domain.Daily.Range(ts)
	wantDayStart := domain.StartOfDay(ts)
	if !dEnd.Equal(ts) || !dStart.Equal(wantDayStart.Add(-24*time.Hour)) {
		t.Errorf("Daily.Range(%s) = [%s, %s], want [%s, %s]", ts, dStart, dEnd, wantDayStart.Add(-24*time.Hour), ts)
	}
}
