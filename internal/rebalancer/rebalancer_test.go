package rebalancer

import (
	"testing"

	"github.com/shopspring/decimal"
)

func decFloat(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestSolve_60_40_Greenfield(t *testing.T) {
	opts := ProblemOptions{
		Budget: decFloat(100),
		Assets: map[string]ProblemAsset{
			"VWCE": {Symbol: "VWCE", Shares: decimal.Zero, Price: decFloat(1), TargetWeight: decFloat(0.6), IsWholeShares: true},
			"AGGH": {Symbol: "AGGH", Shares: decimal.Zero, Price: decFloat(1), TargetWeight: decFloat(0.4), IsWholeShares: true},
		},
		IsBuyOnly: true,
	}

	sol, err := Solve(opts)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if !sol.IsSolved {
		t.Fatal("expected a feasible solution")
	}
	assertShares(t, sol, "VWCE", 60)
	assertShares(t, sol, "AGGH", 40)
	if !sol.BudgetLeft.Abs().LessThanOrEqual(decFloat(1e-4)) {
		t.Errorf("budget_left = %s, want ~0", sol.BudgetLeft)
	}
}

func TestSolve_60_40_OverWeight_BuyOnlyNeverSells(t *testing.T) {
	opts := ProblemOptions{
		Budget: decFloat(100),
		Assets: map[string]ProblemAsset{
			"VWCE": {Symbol: "VWCE", Shares: decFloat(65), Price: decFloat(1), TargetWeight: decFloat(0.6), IsWholeShares: true},
			"AGGH": {Symbol: "AGGH", Shares: decFloat(25), Price: decFloat(1), TargetWeight: decFloat(0.4), IsWholeShares: true},
		},
		IsBuyOnly: true,
	}

	sol, err := Solve(opts)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if !sol.IsSolved {
		t.Fatal("expected a feasible solution")
	}
	assertShares(t, sol, "VWCE", 65)
	assertShares(t, sol, "AGGH", 35)

	for sym, a := range sol.Assets {
		orig := opts.Assets[sym]
		if a.Shares.LessThan(orig.Shares) {
			t.Errorf("buy-only violated for %s: solved shares %s < current %s", sym, a.Shares, orig.Shares)
		}
	}
}

func TestSolve_ThreeAssetRefinement_ConservesBudgetAndImprovesDeviation(t *testing.T) {
	opts := ProblemOptions{
		Budget: decFloat(7706.12),
		Assets: map[string]ProblemAsset{
			"A": {Symbol: "A", Shares: decFloat(5420.10), Price: decimal.NewFromInt(1), TargetWeight: decFloat(0.8)},
			"B": {Symbol: "B", Shares: decFloat(680.93), Price: decimal.NewFromInt(1), TargetWeight: decFloat(0.1)},
			"C": {Symbol: "C", Shares: decFloat(605.48), Price: decimal.NewFromInt(1), TargetWeight: decFloat(0.1)},
		},
		IsBuyOnly: true,
	}

	preDeviation := decimal.Zero
	assets := opts.toAssets()
	for _, a := range assets {
		preDeviation = preDeviation.Add(a.Weight.Sub(a.TargetWeight).Abs())
	}

	sol, err := Solve(opts)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if !sol.IsSolved {
		t.Fatal("expected a feasible solution")
	}

	allocated := decimal.Zero
	postDeviation := decimal.Zero
	for _, a := range sol.Assets {
		allocated = allocated.Add(a.Amount)
		postDeviation = postDeviation.Add(a.Weight.Sub(a.TargetWeight).Abs())
	}
	total := allocated.Add(sol.BudgetLeft)
	if total.Sub(opts.Budget).Abs().GreaterThan(decFloat(1e-4)) {
		t.Errorf("budget not conserved: allocated+left = %s, want %s", total, opts.Budget)
	}
	if postDeviation.GreaterThan(preDeviation) {
		t.Errorf("refinement worsened deviation: pre=%s post=%s", preDeviation, postDeviation)
	}
}

func TestSolve_FeeImpactCap(t *testing.T) {
	maxFeeImpact := decFloat(0.005)
	opts := ProblemOptions{
		Budget: decFloat(1000),
		Assets: map[string]ProblemAsset{
			"X": {
				Symbol: "X", Shares: decimal.Zero, Price: decimal.NewFromInt(1), TargetWeight: decimal.NewFromInt(1),
				Fees: TransactionFees{Kind: VariableFee, FeeRate: decFloat(0.02), MinFee: decFloat(5), MaxFee: ptr(decFloat(10))},
			},
		},
		MaxFeeImpact: &maxFeeImpact,
	}

	sol, err := Solve(opts)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if !sol.IsSolved {
		t.Fatal("expected a feasible solution")
	}

	a := sol.Assets["X"]
	if !a.Amount.Sub(decFloat(995)).Abs().LessThanOrEqual(decFloat(1e-4)) {
		t.Errorf("amount = %s, want ~995", a.Amount)
	}
	if !sol.BudgetLeft.Sub(decFloat(5)).Abs().LessThanOrEqual(decFloat(1e-4)) {
		t.Errorf("budget_left = %s, want ~5", sol.BudgetLeft)
	}
}

func TestSolve_WholeShares_AreIntegral(t *testing.T) {
	opts := ProblemOptions{
		Budget: decFloat(1000),
		Assets: map[string]ProblemAsset{
			"A": {Symbol: "A", Shares: decimal.Zero, Price: decFloat(37.5), TargetWeight: decFloat(0.5), IsWholeShares: true},
			"B": {Symbol: "B", Shares: decimal.Zero, Price: decFloat(13), TargetWeight: decFloat(0.5), IsWholeShares: true},
		},
		IsBuyOnly: true,
	}

	sol, err := Solve(opts)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	for sym, a := range sol.Assets {
		if !a.Shares.Equal(a.Shares.Truncate(0)) {
			t.Errorf("asset %s: shares %s should be integral", sym, a.Shares)
		}
		if a.Shares.LessThan(decimal.Zero) {
			t.Errorf("asset %s: shares %s should be non-negative", sym, a.Shares)
		}
	}
}

func TestValidate_RejectsNonUnitWeightSum(t *testing.T) {
	opts := ProblemOptions{
		Budget: decFloat(100),
		Assets: map[string]ProblemAsset{
			"A": {Symbol: "A", Price: decimal.NewFromInt(1), TargetWeight: decFloat(0.5)},
			"B": {Symbol: "B", Price: decimal.NewFromInt(1), TargetWeight: decFloat(0.3)},
		},
	}
	if err := opts.Validate(); err == nil {
		t.Fatal("expected validation error for weights summing to 0.8")
	}
}

func TestValidate_RejectsNonPositiveBudget(t *testing.T) {
	opts := ProblemOptions{
		Budget: decimal.Zero,
		Assets: map[string]ProblemAsset{
			"A": {Symbol: "A", Price: decimal.NewFromInt(1), TargetWeight: decimal.NewFromInt(1)},
		},
	}
	if err := opts.Validate(); err == nil {
		t.Fatal("expected validation error for zero budget")
	}
}

func assertShares(t *testing.T, sol Solution, symbol string, want float64) {
	t.Helper()
	a, ok := sol.Assets[symbol]
	if !ok {
		t.Fatalf("solution missing asset %s", symbol)
	}
	if !a.Shares.Sub(decFloat(want)).Abs().LessThanOrEqual(decFloat(1e-4)) {
		t.Errorf("%s shares = %s, want %v", symbol, a.Shares, want)
	}
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }
