package domain

import (
	"errors"
	"fmt"
)

// ──────────────────────────────────────────────────────────────────────────────
// ErrorKind — structural error taxonomy
// ──────────────────────────────────────────────────────────────────────────────

// ErrorKind classifies an Error by how a handler should react to it, not
// by which operation produced it.
type ErrorKind string

const (
	// KindBadInput covers malformed requests, unknown assets, target
	// weights not summing to 1, budget <= 0. Surfaced to the caller.
	KindBadInput ErrorKind = "bad_input"

	// KindNotFound covers a market id unknown after a full load
	// attempt. Surfaced as a 404-equivalent.
	KindNotFound ErrorKind = "not_found"

	// KindPriceUnavailable covers a market that exists but has no
	// fresh price and no stale fallback. Surfaced as a 404-equivalent
	// distinct from KindNotFound.
	KindPriceUnavailable ErrorKind = "price_unavailable"

	// KindTransient covers provider timeouts, provider 5xx, and
	// circuit-breaker-open. Logged; not surfaced as an error when a
	// stale price exists (served with a warning), surfaced as a
	// 5xx-equivalent otherwise.
	KindTransient ErrorKind = "transient"

	// KindFatal covers persistence-layer unavailability, invalid
	// startup configuration, and LP solver crashes. Surfaced as 5xx;
	// workers log and continue on the next tick.
	KindFatal ErrorKind = "fatal"
)

// Error is a structural, kind-carrying error with an optional wrapped
// cause. Handlers convert it to an HTTP status at the boundary; workers
// inspect Kind to decide whether to log-and-continue or fall back to a
// stale value.
type Error struct {
	Kind ErrorKind
	Op   string // operation that produced the error, e.g. "mds.GetMarket"
	Msg  string
	Err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error of the given kind.
func NewError(kind ErrorKind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// KindOf extracts the ErrorKind from err's chain, defaulting to
// KindFatal when err does not wrap a *domain.Error — an un-kinded error
// reaching the boundary is treated as the most severe case.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindFatal
}

// Is reports whether err (or any error in its chain) carries the given
// kind.
func Is(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel causes — wrapped by Error, compared with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

var (
	// ErrMarketNotFound is the cause wrapped by a KindNotFound Error
	// when no market matches a given id.
	ErrMarketNotFound = errors.New("market not found")

	// ErrAssetNotFound is the cause wrapped by a KindNotFound Error
	// when no asset matches a given id.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrNoRateAvailable names the case where no direct, inverse, or
	// triangulated path produces a conversion rate. mds.Service does not
	// return it: GetConversionRate reports that case as a nil Price with
	// a nil error.
	ErrNoRateAvailable = errors.New("no conversion rate available")

	// ErrStalePrice names the case where a stale cached price is served
	// after a failed refresh. mds.Service does not return it: GetMarket
	// logs a warning and returns the stale market with a nil error.
	ErrStalePrice = errors.New("serving stale price after refresh failure")

	// ErrBadProblemInput is the cause wrapped by a KindBadInput Error
	// when a rebalancer ProblemOptions fails validation.
	ErrBadProblemInput = errors.New("invalid rebalancer problem input")
)
