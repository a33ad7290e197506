// Package provider adapts an upstream price source to the mds.Provider
// interface, wrapping every call in a circuit breaker so a flaky
// upstream fails fast with a transient error instead of hanging the
// discovery/updater workers. KrakenFetcher is the only concrete
// upstream client in this package.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dcapal/dcapal-backend/internal/domain"
	"github.com/sony/gobreaker"
)

// StatusError carries the upstream HTTP status code so callers and the
// breaker's IsSuccessful hook can classify the failure.
type StatusError struct {
	Op     string
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: upstream status %d: %v", e.Op, e.Status, e.Err)
}
func (e *StatusError) Unwrap() error { return e.Err }

// classify maps an upstream HTTP status to an ErrorKind:
//
//	404            -> miss (nil price, nil error)
//	429            -> transient (caller should back off / rotate credentials)
//	5xx            -> transient
//	no response    -> transient (status 0: timeout or network failure)
//	other 4xx      -> fatal (hard error, not retried within this tick)
func classify(op string, status int, cause error) (domain.ErrorKind, error) {
	switch {
	case status == http.StatusNotFound:
		return domain.KindNotFound, nil
	case status == http.StatusTooManyRequests:
		return domain.KindTransient, domain.NewError(domain.KindTransient, op, "rate limited", &StatusError{Op: op, Status: status, Err: cause})
	case status >= 500 && status < 600:
		return domain.KindTransient, domain.NewError(domain.KindTransient, op, "upstream error", &StatusError{Op: op, Status: status, Err: cause})
	case status == 0:
		return domain.KindTransient, domain.NewError(domain.KindTransient, op, "upstream unreachable", cause)
	case status >= 400 && status < 500:
		return domain.KindFatal, domain.NewError(domain.KindFatal, op, "upstream error", &StatusError{Op: op, Status: status, Err: cause})
	default:
		return domain.KindFatal, domain.NewError(domain.KindFatal, op, "unexpected upstream response", cause)
	}
}

// Fetcher is the raw HTTP-facing half of a price provider: the part
// that actually talks to an upstream API. KrakenFetcher implements it;
// Breaker wraps whatever satisfies this interface with circuit-breaking
// and status mapping.
type Fetcher interface {
	Assets(ctx context.Context, known map[string]domain.Market) ([]domain.Asset, []domain.Market, error)
	OHLC(ctx context.Context, market domain.Market, freq domain.OHLCFrequency, start, end time.Time) (*domain.Price, int, error)
}

// Breaker wraps a Fetcher with a sony/gobreaker circuit breaker so
// repeated upstream failures trip open and fail fast instead of
// blocking a discovery/updater tick.
type Breaker struct {
	fetcher Fetcher
	cb      *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewBreaker builds a Breaker around fetcher, named name for the
// breaker's own metrics/logging.
func NewBreaker(name string, fetcher Fetcher, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(cbName string, from, to gobreaker.State) {
			logger.Warn("mds: provider circuit breaker state change", "breaker", cbName, "from", from, "to", to)
		},
	}
	return &Breaker{
		fetcher: fetcher,
		cb:      gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// FetchAssets implements mds.Provider.
func (b *Breaker) FetchAssets(ctx context.Context, known map[string]domain.Market) ([]domain.Asset, []domain.Market, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		assets, markets, err := b.fetcher.Assets(ctx, known)
		if err != nil {
			return nil, err
		}
		return assetsAndMarkets{assets, markets}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, nil, domain.NewError(domain.KindTransient, "provider.FetchAssets", "circuit open", err)
		}
		return nil, nil, err
	}
	am := result.(assetsAndMarkets)
	return am.assets, am.markets, nil
}

// FetchMarketPrice implements mds.Provider: Minutes5 first, Daily on a
// miss.
func (b *Breaker) FetchMarketPrice(ctx context.Context, market domain.Market, now time.Time) (*domain.Price, error) {
	for _, freq := range []domain.OHLCFrequency{domain.Minutes5, domain.Daily} {
		start, end := freq.Range(now)
		price, err := b.fetchOHLC(ctx, market, freq, start, end)
		if err != nil {
			return nil, err
		}
		if price != nil {
			return price, nil
		}
		// nil price, nil error: a miss at this frequency, fall through
		// to the next one.
	}
	return nil, nil
}

func (b *Breaker) fetchOHLC(ctx context.Context, market domain.Market, freq domain.OHLCFrequency, start, end time.Time) (*domain.Price, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		price, status, ferr := b.fetcher.OHLC(ctx, market, freq, start, end)
		if ferr != nil {
			_, kindErr := classify(fmt.Sprintf("provider.OHLC[%s]", freq), status, ferr)
			if kindErr == nil {
				// classify() returned (KindNotFound, nil) — a miss, not a failure.
				return (*domain.Price)(nil), nil
			}
			return nil, kindErr
		}
		return price, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.NewError(domain.KindTransient, "provider.OHLC", "circuit open", err)
		}
		return nil, err
	}
	price, _ := result.(*domain.Price)
	return price, nil
}

type assetsAndMarkets struct {
	assets  []domain.Asset
	markets []domain.Market
}
