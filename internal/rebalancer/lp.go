package rebalancer

import (
	"github.com/shopspring/decimal"
)

// amountPrecision is the fixed-point precision (decimal places) money
// amounts round to.
const amountPrecision = 4

// solveLP builds and solves the stage-1 linear program: minimise the
// L1 weight deviation subject to the budget, target-weight, and
// (optional) buy-only constraints. Floats are used only here and at
// the wire boundary.
func solveLP(opts ProblemOptions, assets map[string]Asset) (map[string]decimal.Decimal, bool) {
	symbols := opts.symbols()
	n := len(symbols)
	if n == 0 {
		return nil, false
	}

	budget, _ := opts.Budget.Float64()

	// Variable layout: [a_0..a_{n-1}, s_pos_0..s_pos_{n-1}, s_neg_0..s_neg_{n-1}].
	cost := make([]float64, 3*n)
	for i := range symbols {
		cost[n+i] = 1
		cost[2*n+i] = 1
	}

	var constraints []linConstraint

	for i, sym := range symbols {
		tw, _ := assets[sym].TargetWeight.Float64()

		// a_i/budget - s_pos_i <= target_weight_i
		row1 := make([]float64, 3*n)
		row1[i] = 1
		row1[n+i] = -budget
		constraints = append(constraints, linConstraint{coeffs: row1, op: le, rhs: budget * tw})

		// a_i/budget + s_neg_i >= target_weight_i, rewritten as <=:
		// -a_i - budget*s_neg_i <= -budget*target_weight_i
		row2 := make([]float64, 3*n)
		row2[i] = -1
		row2[2*n+i] = -budget
		constraints = append(constraints, linConstraint{coeffs: row2, op: le, rhs: -budget * tw})
	}

	sumRow := make([]float64, 3*n)
	for i := range symbols {
		sumRow[i] = 1
	}
	sumOp := le
	if opts.UseAllBudget {
		sumOp = eq
	}
	constraints = append(constraints, linConstraint{coeffs: sumRow, op: sumOp, rhs: budget})

	if opts.IsBuyOnly {
		for i, sym := range symbols {
			cur, _ := assets[sym].CurrentAmount.Float64()
			if cur <= 0 {
				continue
			}
			row := make([]float64, 3*n)
			row[i] = -1
			constraints = append(constraints, linConstraint{coeffs: row, op: le, rhs: -cur})
		}
	}

	result := solveSimplex(linProgram{cost: cost, constraints: constraints})
	if !result.feasible {
		return nil, false
	}

	out := make(map[string]decimal.Decimal, n)
	for i, sym := range symbols {
		amount := decimal.NewFromFloat(result.x[i]).Round(amountPrecision)
		if amount.LessThan(decimal.Zero) {
			amount = decimal.Zero
		}
		out[sym] = amount
	}
	return out, true
}
