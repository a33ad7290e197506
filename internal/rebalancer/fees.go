package rebalancer

import "github.com/shopspring/decimal"

// computeFee applies the asset's fee model to the amount newly
// deployed into it.
func computeFee(fees TransactionFees, allocated decimal.Decimal) decimal.Decimal {
	if allocated.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	switch fees.Kind {
	case FixedFee:
		return fees.FeeAmount
	case VariableFee:
		fee := allocated.Mul(fees.FeeRate)
		if fee.LessThan(fees.MinFee) {
			fee = fees.MinFee
		}
		if fees.MaxFee != nil && fee.GreaterThan(*fees.MaxFee) {
			fee = *fees.MaxFee
		}
		return fee
	default:
		return decimal.Zero
	}
}

// minPossibleFee is the smallest fee the model can ever charge on a
// nonzero transaction — FeeAmount for a fixed fee, MinFee for a
// variable one. It is the floor max_fee_impact must clear for any buy
// of this asset to be worth making.
func minPossibleFee(fees TransactionFees) decimal.Decimal {
	switch fees.Kind {
	case FixedFee:
		return fees.FeeAmount
	case VariableFee:
		return fees.MinFee
	default:
		return decimal.Zero
	}
}

// applyFees is stage 4: it charges each asset's transaction fee
// against the money newly deployed to it, capping the fee itself
// (not the allocation) at max_fee_impact*allocated_amount when that
// cap is set, and skipping the buy entirely when even the fee's own
// floor cannot fit under the cap at this allocation size. A charged fee
// comes out of the asset's amount and is added to budgetLeft, so
// amounts plus budgetLeft still sum to the budget.
func applyFees(opts ProblemOptions, assets map[string]Asset, budgetLeft decimal.Decimal) (map[string]Asset, decimal.Decimal) {
	out := make(map[string]Asset, len(assets))
	for sym, a := range assets {
		allocated := a.Amount.Sub(a.CurrentAmount)
		if allocated.LessThan(decimal.Zero) {
			allocated = decimal.Zero
		}

		fee := computeFee(a.Fees, allocated)

		if fee.GreaterThan(decimal.Zero) && opts.MaxFeeImpact != nil && allocated.GreaterThan(decimal.Zero) {
			cap := opts.MaxFeeImpact.Mul(allocated)
			if fee.GreaterThan(cap) {
				if cap.LessThan(minPossibleFee(a.Fees)) {
					a, budgetLeft = skipBuy(a, budgetLeft)
					out[sym] = a
					continue
				}
				fee = cap
			}
		}

		if fee.GreaterThan(decimal.Zero) {
			a.Amount = a.Amount.Sub(fee)
			budgetLeft = budgetLeft.Add(fee)
		}
		out[sym] = a
	}
	return out, budgetLeft
}

// skipBuy reverts an asset to its pre-solve holding, returning
// whatever stage 1-3 had allocated to it back to budgetLeft.
func skipBuy(a Asset, budgetLeft decimal.Decimal) (Asset, decimal.Decimal) {
	newAmount := a.CurrentAmount
	var shares decimal.Decimal
	if a.IsWholeShares {
		shares = newAmount.Div(a.Price).Floor()
		newAmount = shares.Mul(a.Price)
	} else {
		shares = newAmount.Div(a.Price)
	}

	budgetLeft = budgetLeft.Add(a.Amount.Sub(newAmount))
	a.Amount = newAmount
	a.Shares = shares
	return a, budgetLeft
}
