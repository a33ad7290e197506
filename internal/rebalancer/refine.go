package rebalancer

import "github.com/shopspring/decimal"

// roundingEpsilon is the tolerance used to decide "leftover is zero"
// and "candidate fully allocated" in the refinement loop.
var roundingEpsilon = decimal.NewFromFloat(1e-4)

// maxRefineIterations bounds stage 2's redistribution loop; each
// iteration strictly shrinks the candidate set or the leftover, so a
// small fixed bound is always enough in practice.
const maxRefineIterations = 64

// refine redistributes the money stage 1 already committed to
// under-target assets in target-weight proportion, rather than
// whatever the L1-minimising LP happened to produce. It never changes the total money allocated across
// candidates, only how it is split between them.
func refine(assets map[string]Asset, budget decimal.Decimal) map[string]Asset {
	candidates := make(map[string]bool)
	for sym, a := range assets {
		if a.Weight.LessThanOrEqual(a.TargetWeight) {
			candidates[sym] = true
		}
	}
	if len(candidates) == 0 {
		return assets
	}

	running := make(map[string]decimal.Decimal, len(candidates))
	leftover := decimal.Zero
	for sym := range candidates {
		a := assets[sym]
		running[sym] = a.CurrentAmount
		leftover = leftover.Add(a.Amount.Sub(a.CurrentAmount))
	}

	remaining := make(map[string]bool, len(candidates))
	for sym := range candidates {
		remaining[sym] = true
	}

	for iter := 0; iter < maxRefineIterations && leftover.GreaterThan(roundingEpsilon) && len(remaining) > 0; iter++ {
		weightSum := decimal.Zero
		for sym := range remaining {
			weightSum = weightSum.Add(assets[sym].TargetWeight)
		}
		if weightSum.LessThanOrEqual(decimal.Zero) {
			break
		}

		leftoverNext := decimal.Zero
		for sym := range remaining {
			a := assets[sym]
			w := a.TargetWeight.Div(weightSum)
			share := w.Mul(leftover)

			room := a.TargetAmount.Sub(running[sym])
			if room.LessThan(decimal.Zero) {
				room = decimal.Zero
			}

			alloc := share
			if alloc.GreaterThan(room) {
				alloc = room
			}
			alloc = alloc.Round(amountPrecision)

			running[sym] = running[sym].Add(alloc)
			leftoverNext = leftoverNext.Add(share.Sub(alloc))

			if room.Sub(alloc).LessThanOrEqual(roundingEpsilon) {
				delete(remaining, sym)
			}
		}
		leftover = leftoverNext
	}

	out := make(map[string]Asset, len(assets))
	for sym, a := range assets {
		if candidates[sym] {
			a.Amount = running[sym]
			if budget.GreaterThan(decimal.Zero) {
				a.Weight = a.Amount.Div(budget)
			}
		}
		out[sym] = a
	}
	return out
}

// projectWholeShares converts each whole-share asset's continuous
// amount into floor(amount/price)*price, freeing any remainder back
// to budgetLeft; non-whole assets convert to shares continuously with
// no rounding.
func projectWholeShares(assets map[string]Asset, budgetLeft decimal.Decimal) (map[string]Asset, decimal.Decimal) {
	out := make(map[string]Asset, len(assets))
	for sym, a := range assets {
		if a.IsWholeShares {
			shares := a.Amount.Div(a.Price).Floor()
			amount := shares.Mul(a.Price)
			budgetLeft = budgetLeft.Add(a.Amount.Sub(amount))
			a.Shares = shares
			a.Amount = amount
		} else {
			a.Shares = a.Amount.Div(a.Price)
		}
		out[sym] = a
	}
	return out, budgetLeft
}
