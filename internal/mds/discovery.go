package mds

import (
	"context"
	"log/slog"
	"time"

	"github.com/dcapal/dcapal-backend/internal/domain"
)

// DefaultDiscoveryInterval is how often the discovery loop wakes up to
// check whether today's asset/market discovery has run yet.
const DefaultDiscoveryInterval = 60 * time.Second

// Discovery is the Market Discovery worker: once per calendar day it
// asks the provider for assets/markets not already known, stores them,
// and fetches an initial price for each new market.
type Discovery struct {
	svc      *Service
	interval time.Duration
	logger   *slog.Logger
}

// NewDiscovery builds a Discovery worker. interval <= 0 uses
// DefaultDiscoveryInterval.
func NewDiscovery(svc *Service, interval time.Duration, logger *slog.Logger) *Discovery {
	if interval <= 0 {
		interval = DefaultDiscoveryInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{svc: svc, interval: interval, logger: logger}
}

// Run starts the discovery loop. It blocks until ctx is cancelled; call
// it with `go`.
func (d *Discovery) Run(ctx context.Context) {
	defer d.recoverAndLog()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("mds: discovery loop shutting down")
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick runs a single discovery pass, guarded by the shared "last
// fetched day" persistence timestamp: if discovery already ran today,
// this is a no-op.
func (d *Discovery) tick(ctx context.Context) {
	last, err := d.svc.persistence.GetLastFetched(ctx)
	if err != nil {
		d.logger.Error("mds: discovery could not read last-fetched timestamp", "err", err)
		return
	}

	now := time.Now().UTC()
	if domain.StartOfDay(last).Equal(domain.StartOfDay(now)) {
		return
	}

	known, err := d.svc.persistence.LoadMarkets(ctx)
	if err != nil {
		d.logger.Error("mds: discovery could not load known markets", "err", err)
		return
	}
	knownByID := make(map[string]domain.Market, len(known))
	for _, m := range known {
		knownByID[m.ID] = m
	}

	newAssets, newMarkets, err := d.svc.provider.FetchAssets(ctx, knownByID)
	if err != nil {
		d.logger.Error("mds: discovery FetchAssets failed, will retry next tick", "err", err)
		return
	}

	for _, a := range newAssets {
		if err := d.svc.persistence.StoreAsset(ctx, a); err != nil {
			d.logger.Error("mds: discovery failed to store asset", "asset", a.ID, "err", err)
		}
	}

	for _, m := range newMarkets {
		if err := d.svc.persistence.StoreMarket(ctx, m); err != nil {
			d.logger.Error("mds: discovery failed to store market", "market", m.ID, "err", err)
			continue
		}

		// Fetching the initial price for a single new market is
		// best-effort: a missing price does not block discovery of the
		// rest.
		price, err := d.svc.provider.FetchMarketPrice(ctx, m, now)
		if err != nil {
			d.logger.Warn("mds: discovery could not fetch initial price", "market", m.ID, "err", err)
			continue
		}
		if price == nil {
			continue
		}
		if err := d.svc.persistence.UpdateMarketPrice(ctx, m.WithPrice(*price)); err != nil {
			d.logger.Warn("mds: discovery could not persist initial price", "market", m.ID, "err", err)
			continue
		}
		d.svc.SetPrice(m.ID, *price)
	}

	if err := d.svc.persistence.SetLastFetched(ctx, now); err != nil {
		d.logger.Error("mds: discovery could not bump last-fetched timestamp", "err", err)
	}
}

func (d *Discovery) recoverAndLog() {
	if r := recover(); r != nil {
		d.logger.Error("mds: PANIC recovered in discovery loop", "panic", r)
	}
}
