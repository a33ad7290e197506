package rebalancer

import "github.com/shopspring/decimal"

// Solve runs the full rebalance: stage 1's continuous LP, stage 2's
// leftover redistribution, stage 3's whole-share projection, and
// stage 4's fee model, in that order.
func Solve(opts ProblemOptions) (Solution, error) {
	if err := opts.Validate(); err != nil {
		return Solution{}, err
	}

	assets := opts.toAssets()

	lpAmounts, feasible := solveLP(opts, assets)
	if !feasible {
		return Solution{IsSolved: false, Assets: assets, BudgetLeft: opts.Budget}, nil
	}

	allocated := decimal.Zero
	for sym, a := range assets {
		a.Amount = lpAmounts[sym]
		if opts.Budget.GreaterThan(decimal.Zero) {
			a.Weight = a.Amount.Div(opts.Budget)
		}
		assets[sym] = a
		allocated = allocated.Add(a.Amount)
	}
	budgetLeft := opts.Budget.Sub(allocated)

	assets = refine(assets, opts.Budget)
	assets, budgetLeft = projectWholeShares(assets, budgetLeft)
	assets, budgetLeft = applyFees(opts, assets, budgetLeft)

	return Solution{IsSolved: true, Assets: assets, BudgetLeft: budgetLeft}, nil
}
