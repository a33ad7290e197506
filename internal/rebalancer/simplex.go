package rebalancer

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// relOp is the relational operator of one linear constraint row.
type relOp int

const (
	le relOp = iota
	ge
	eq
)

// linConstraint is one row of a linear program in the form
// `coeffs . x <op> rhs`.
type linConstraint struct {
	coeffs []float64
	op     relOp
	rhs    float64
}

// linProgram is a minimisation problem `min cost . x` subject to
// constraints, x >= 0.
type linProgram struct {
	cost        []float64
	constraints []linConstraint
}

// lpResult is the outcome of solveSimplex.
type lpResult struct {
	feasible bool
	x        []float64
}

const (
	simplexEpsilon = 1e-9
	simplexMaxIter = 5000
)

// solveSimplex solves p with a single-phase Big-M tableau simplex built
// on a gonum dense matrix.
func solveSimplex(p linProgram) lpResult {
	n := len(p.cost)
	m := len(p.constraints)
	if n == 0 || m == 0 {
		return lpResult{feasible: false}
	}

	bigM := pickBigM(p)

	// Normalise every row to a non-negative RHS, then assign one slack,
	// surplus, or artificial column per row.
	type normRow struct {
		coeffs []float64
		rhs    float64
		op     relOp
	}

	rows := make([]normRow, m)
	for i, c := range p.constraints {
		coeffs := append([]float64(nil), c.coeffs...)
		rhs := c.rhs
		op := c.op
		if rhs < 0 {
			for j := range coeffs {
				coeffs[j] = -coeffs[j]
			}
			rhs = -rhs
			switch op {
			case le:
				op = ge
			case ge:
				op = le
			}
		}
		rows[i] = normRow{coeffs: coeffs, rhs: rhs, op: op}
	}

	numSlack, numSurplus, numArtif := 0, 0, 0
	for _, r := range rows {
		switch r.op {
		case le:
			numSlack++
		case ge:
			numSurplus++
			numArtif++
		case eq:
			numArtif++
		}
	}

	totalCols := n + numSlack + numSurplus + numArtif
	tableau := mat.NewDense(m+1, totalCols+1, nil)

	cost := make([]float64, totalCols)
	copy(cost, p.cost)

	basis := make([]int, m)
	slackIdx, surplusIdx, artifIdx := n, n+numSlack, n+numSlack+numSurplus

	for i, r := range rows {
		for j, v := range r.coeffs {
			tableau.Set(i, j, v)
		}
		tableau.Set(i, totalCols, r.rhs)

		switch r.op {
		case le:
			tableau.Set(i, slackIdx, 1)
			basis[i] = slackIdx
			slackIdx++
		case ge:
			tableau.Set(i, surplusIdx, -1)
			tableau.Set(i, artifIdx, 1)
			cost[artifIdx] = bigM
			basis[i] = artifIdx
			surplusIdx++
			artifIdx++
		case eq:
			tableau.Set(i, artifIdx, 1)
			cost[artifIdx] = bigM
			basis[i] = artifIdx
			artifIdx++
		}
	}

	// Objective row: reduced cost c_j - z_j, canonicalised so that
	// basic columns read zero.
	objRow := make([]float64, totalCols+1)
	copy(objRow, cost)
	for i := 0; i < m; i++ {
		cb := cost[basis[i]]
		if cb == 0 {
			continue
		}
		for j := 0; j <= totalCols; j++ {
			objRow[j] -= cb * tableau.At(i, j)
		}
	}
	for j := 0; j <= totalCols; j++ {
		tableau.Set(m, j, objRow[j])
	}

	for iter := 0; iter < simplexMaxIter; iter++ {
		pivotCol := -1
		best := -simplexEpsilon
		for j := 0; j < totalCols; j++ {
			v := tableau.At(m, j)
			if v < best {
				best = v
				pivotCol = j
			}
		}
		if pivotCol == -1 {
			break // optimal
		}

		pivotRow := -1
		bestRatio := math.Inf(1)
		for i := 0; i < m; i++ {
			a := tableau.At(i, pivotCol)
			if a <= simplexEpsilon {
				continue
			}
			ratio := tableau.At(i, totalCols) / a
			if ratio < bestRatio-simplexEpsilon ||
				(math.Abs(ratio-bestRatio) < simplexEpsilon && (pivotRow == -1 || basis[i] < basis[pivotRow])) {
				bestRatio = ratio
				pivotRow = i
			}
		}
		if pivotRow == -1 {
			return lpResult{feasible: false} // unbounded
		}

		pivotVal := tableau.At(pivotRow, pivotCol)
		for j := 0; j <= totalCols; j++ {
			tableau.Set(pivotRow, j, tableau.At(pivotRow, j)/pivotVal)
		}
		for i := 0; i <= m; i++ {
			if i == pivotRow {
				continue
			}
			factor := tableau.At(i, pivotCol)
			if factor == 0 {
				continue
			}
			for j := 0; j <= totalCols; j++ {
				tableau.Set(i, j, tableau.At(i, j)-factor*tableau.At(pivotRow, j))
			}
		}
		basis[pivotRow] = pivotCol
	}

	// Any artificial variable left basic at a positive value means no
	// feasible point satisfies every original constraint.
	for i := 0; i < m; i++ {
		if basis[i] >= n+numSlack+numSurplus && tableau.At(i, totalCols) > simplexEpsilon {
			return lpResult{feasible: false}
		}
	}

	x := make([]float64, n)
	for i := 0; i < m; i++ {
		if basis[i] < n {
			x[basis[i]] = tableau.At(i, totalCols)
		}
	}

	return lpResult{feasible: true, x: x}
}

// pickBigM chooses a penalty large enough to dominate every real cost
// and RHS magnitude in p, so artificial variables are always driven
// out of the basis before optimality.
func pickBigM(p linProgram) float64 {
	maxAbs := 1.0
	for _, c := range p.constraints {
		if a := math.Abs(c.rhs); a > maxAbs {
			maxAbs = a
		}
		for _, v := range c.coeffs {
			if a := math.Abs(v); a > maxAbs {
				maxAbs = a
			}
		}
	}
	return 1e6 * maxAbs
}
