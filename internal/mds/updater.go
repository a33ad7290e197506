package mds

import (
	"context"
	"log/slog"
	"time"

	"github.com/dcapal/dcapal-backend/internal/domain"
)

// DefaultUpdaterInterval is how often the updater loop refreshes every
// known market's price.
const DefaultUpdaterInterval = 5 * time.Minute

// interMarketThrottle is the pause between per-market fetches within a
// single updater tick, so a large market list does not burst the
// provider.
const interMarketThrottle = 200 * time.Millisecond

// Updater is the Price Updater worker: on each tick it refreshes every
// known market's price, falling back from Minutes5 to Daily OHLC, and
// pushes the result through SetPrice so dependent synthetic rates are
// invalidated.
type Updater struct {
	svc      *Service
	interval time.Duration
	throttle time.Duration
	logger   *slog.Logger
}

// NewUpdater builds an Updater worker. interval <= 0 uses
// DefaultUpdaterInterval.
func NewUpdater(svc *Service, interval time.Duration, logger *slog.Logger) *Updater {
	if interval <= 0 {
		interval = DefaultUpdaterInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{svc: svc, interval: interval, throttle: interMarketThrottle, logger: logger}
}

// Run starts the updater loop. It blocks until ctx is cancelled; call
// it with `go`.
func (u *Updater) Run(ctx context.Context) {
	defer u.recoverAndLog()

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			u.logger.Info("mds: updater loop shutting down")
			return
		case <-ticker.C:
			u.tick(ctx)
		}
	}
}

// tick refreshes every known market's price, one at a time.
func (u *Updater) tick(ctx context.Context) {
	markets, err := u.svc.persistence.LoadMarkets(ctx)
	if err != nil {
		u.logger.Error("mds: updater could not load markets", "err", err)
		return
	}

	for i, m := range markets {
		if ctx.Err() != nil {
			return
		}
		u.refreshOne(ctx, m)

		if i < len(markets)-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(u.throttle):
			}
		}
	}
}

// refreshOne fetches a fresh price for a single market, trying Minutes5
// OHLC first and falling back to Daily, then persists it and invalidates
// dependent synthetic rates via SetPrice.
func (u *Updater) refreshOne(ctx context.Context, m domain.Market) {
	now := time.Now().UTC()

	price, err := u.svc.provider.FetchMarketPrice(ctx, m, now)
	if err != nil {
		u.logger.Warn("mds: updater failed to fetch price", "market", m.ID, "err", err)
		return
	}
	if price == nil {
		u.logger.Debug("mds: updater found no fresh price", "market", m.ID)
		return
	}

	updated := m.WithPrice(*price)
	if err := u.svc.persistence.UpdateMarketPrice(ctx, updated); err != nil {
		u.logger.Error("mds: updater failed to persist price", "market", m.ID, "err", err)
		return
	}

	u.svc.SetPrice(m.ID, *price)
}

func (u *Updater) recoverAndLog() {
	if r := recover(); r != nil {
		u.logger.Error("mds: PANIC recovered in updater loop", "panic", r)
	}
}
