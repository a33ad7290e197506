// Package rebalancer implements the Portfolio Rebalancer: a pure,
// single-threaded solver that turns a target-weight portfolio plus
// current holdings into a share allocation, in whole shares for the
// assets that require them.
package rebalancer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dcapal/dcapal-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// weightSumTolerance is how far target weights may deviate from 1
// before the problem is rejected.
var weightSumTolerance = decimal.NewFromFloat(1e-4)

// FeeKind selects which transaction-fee model applies to an asset.
type FeeKind int

const (
	ZeroFee FeeKind = iota
	FixedFee
	VariableFee
)

// TransactionFees is the per-asset fee model.
type TransactionFees struct {
	Kind FeeKind

	// FixedFee
	FeeAmount decimal.Decimal

	// VariableFee
	FeeRate decimal.Decimal
	MinFee  decimal.Decimal
	MaxFee  *decimal.Decimal // optional
}

// ProblemAsset is one line of the portfolio problem.
type ProblemAsset struct {
	Symbol        string
	Shares        decimal.Decimal
	Price         decimal.Decimal
	TargetWeight  decimal.Decimal
	IsWholeShares bool
	Fees          TransactionFees
}

// ProblemOptions is the rebalancer's input.
type ProblemOptions struct {
	Budget       decimal.Decimal
	PortfolioCcy string
	Assets       map[string]ProblemAsset
	MaxFeeImpact *decimal.Decimal // optional cap on fee/notional
	IsBuyOnly    bool
	UseAllBudget bool
}

// Asset is the solution-side view of a ProblemAsset: the fixed
// problem fields plus the evolving allocation.
type Asset struct {
	ProblemAsset

	CurrentAmount decimal.Decimal
	CurrentWeight decimal.Decimal
	TargetAmount  decimal.Decimal

	Shares decimal.Decimal
	Amount decimal.Decimal
	Weight decimal.Decimal
}

// Solution is the rebalancer's output.
type Solution struct {
	IsSolved   bool
	Assets     map[string]Asset
	BudgetLeft decimal.Decimal
}

// Validate checks the problem's invariants before any LP is built,
// accumulating every violation so a caller sees the whole
// picture in one report.
func (o ProblemOptions) Validate() error {
	var errs []error

	if o.Budget.LessThanOrEqual(decimal.Zero) {
		errs = append(errs, fmt.Errorf("budget must be positive, got %s", o.Budget))
	}
	if len(o.Assets) == 0 {
		errs = append(errs, errors.New("no assets in problem"))
	}

	weightSum := decimal.Zero
	currentTotal := decimal.Zero
	for symbol, a := range o.Assets {
		if a.Shares.LessThan(decimal.Zero) {
			errs = append(errs, fmt.Errorf("asset %s: shares must be >= 0, got %s", symbol, a.Shares))
		}
		if a.TargetWeight.LessThan(decimal.Zero) || a.TargetWeight.GreaterThan(decimal.NewFromInt(1)) {
			errs = append(errs, fmt.Errorf("asset %s: target_weight must be in [0,1], got %s", symbol, a.TargetWeight))
		}
		if a.Price.LessThanOrEqual(decimal.Zero) {
			errs = append(errs, fmt.Errorf("asset %s: price must be positive, got %s", symbol, a.Price))
		}
		weightSum = weightSum.Add(a.TargetWeight)
		currentTotal = currentTotal.Add(a.Price.Mul(a.Shares))
	}

	if weightSum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(weightSumTolerance) {
		errs = append(errs, fmt.Errorf("target weights sum to %s, want 1 (+/- %s)", weightSum, weightSumTolerance))
	}
	if currentTotal.GreaterThan(o.Budget) {
		errs = append(errs, fmt.Errorf("current holdings value %s exceeds budget %s", currentTotal, o.Budget))
	}

	if len(errs) == 0 {
		return nil
	}
	return domain.NewError(domain.KindBadInput, "rebalancer.Validate", "invalid problem input", errors.Join(append(errs, domain.ErrBadProblemInput)...))
}

// symbols returns the problem's asset symbols in a stable, sorted
// order so the LP's variable layout and any iteration over it is
// deterministic.
func (o ProblemOptions) symbols() []string {
	out := make([]string, 0, len(o.Assets))
	for s := range o.Assets {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// toAssets builds the solution-side Asset map seeded from current
// holdings, before any stage of the solve has run.
func (o ProblemOptions) toAssets() map[string]Asset {
	out := make(map[string]Asset, len(o.Assets))
	for symbol, pa := range o.Assets {
		currentAmount := pa.Price.Mul(pa.Shares)
		targetAmount := pa.TargetWeight.Mul(o.Budget)

		var currentWeight decimal.Decimal
		if o.Budget.GreaterThan(decimal.Zero) {
			currentWeight = currentAmount.Div(o.Budget)
		}

		out[symbol] = Asset{
			ProblemAsset:  pa,
			CurrentAmount: currentAmount,
			CurrentWeight: currentWeight,
			TargetAmount:  targetAmount,
			Shares:        pa.Shares,
			Amount:        currentAmount,
			Weight:        currentWeight,
		}
	}
	return out
}
