package rebalancer

import "github.com/shopspring/decimal"

// SuggestInjection computes the cash injection that would restore the
// most over-weight asset back to its target weight without selling
// anything: the asset with the largest positive
// current_weight-target_weight gap, injected so its share of the new,
// larger total matches its target again.
func SuggestInjection(opts ProblemOptions) (symbol string, injection decimal.Decimal, ok bool) {
	assets := opts.toAssets()

	currentTotal := decimal.Zero
	for _, a := range assets {
		currentTotal = currentTotal.Add(a.CurrentAmount)
	}
	if currentTotal.LessThanOrEqual(decimal.Zero) {
		return "", decimal.Zero, false
	}

	var worstSymbol string
	worstDelta := decimal.Zero
	for sym, a := range assets {
		if a.TargetWeight.LessThanOrEqual(decimal.Zero) {
			continue
		}
		currentWeight := a.CurrentAmount.Div(currentTotal)
		delta := currentWeight.Sub(a.TargetWeight)
		if delta.GreaterThan(decimal.Zero) && delta.GreaterThan(worstDelta) {
			worstDelta = delta
			worstSymbol = sym
		}
	}
	if worstSymbol == "" {
		return "", decimal.Zero, false
	}

	a := assets[worstSymbol]
	injectionAmount := a.CurrentAmount.Div(a.TargetWeight).Sub(currentTotal)
	return worstSymbol, injectionAmount.Round(amountPrecision), true
}
