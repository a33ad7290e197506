package api

import (
	"time"

	"github.com/dcapal/dcapal-backend/internal/domain"
	"github.com/dcapal/dcapal-backend/internal/rebalancer"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// MDS wire types
// ──────────────────────────────────────────────────────────────────────────────

// priceDTO is the wire representation of a domain.Price. Decimal values
// convert to float64 only at this boundary.
type priceDTO struct {
	Price float64   `json:"price"`
	Ts    time.Time `json:"ts"`
}

func newPriceDTO(p domain.Price) priceDTO {
	price, _ := p.Price.Float64()
	return priceDTO{Price: price, Ts: p.Ts}
}

type marketDTO struct {
	ID    string    `json:"id"`
	Pair  string    `json:"pair"`
	Base  string    `json:"base"`
	Quote string    `json:"quote"`
	Price *priceDTO `json:"price,omitempty"`
}

func newMarketDTO(m domain.Market) marketDTO {
	dto := marketDTO{ID: m.ID, Pair: m.Pair, Base: m.Base.ID, Quote: m.Quote.ID}
	if m.Price != nil {
		p := newPriceDTO(*m.Price)
		dto.Price = &p
	}
	return dto
}

// ──────────────────────────────────────────────────────────────────────────────
// Rebalancer wire types
// ──────────────────────────────────────────────────────────────────────────────

// feesDTO is the wire representation of rebalancer.TransactionFees.
// Kind is one of "zero", "fixed", "variable".
type feesDTO struct {
	Kind      string   `json:"kind"`
	FeeAmount *float64 `json:"fee_amount,omitempty"`
	FeeRate   *float64 `json:"fee_rate,omitempty"`
	MinFee    *float64 `json:"min_fee,omitempty"`
	MaxFee    *float64 `json:"max_fee,omitempty"`
}

func (f *feesDTO) toDomain() rebalancer.TransactionFees {
	if f == nil {
		return rebalancer.TransactionFees{Kind: rebalancer.ZeroFee}
	}
	switch f.Kind {
	case "fixed":
		amt := 0.0
		if f.FeeAmount != nil {
			amt = *f.FeeAmount
		}
		return rebalancer.TransactionFees{Kind: rebalancer.FixedFee, FeeAmount: decimal.NewFromFloat(amt)}
	case "variable":
		rate, minFee := 0.0, 0.0
		if f.FeeRate != nil {
			rate = *f.FeeRate
		}
		if f.MinFee != nil {
			minFee = *f.MinFee
		}
		fees := rebalancer.TransactionFees{
			Kind:    rebalancer.VariableFee,
			FeeRate: decimal.NewFromFloat(rate),
			MinFee:  decimal.NewFromFloat(minFee),
		}
		if f.MaxFee != nil {
			maxFee := decimal.NewFromFloat(*f.MaxFee)
			fees.MaxFee = &maxFee
		}
		return fees
	default:
		return rebalancer.TransactionFees{Kind: rebalancer.ZeroFee}
	}
}

type problemAssetDTO struct {
	Shares        float64  `json:"shares"`
	Price         float64  `json:"price"`
	TargetWeight  float64  `json:"target_weight"`
	IsWholeShares bool     `json:"is_whole_shares"`
	Fees          *feesDTO `json:"fees,omitempty"`
}

// rebalanceRequest is the wire representation of
// rebalancer.ProblemOptions.
type rebalanceRequest struct {
	Budget       float64                    `json:"budget"`
	PortfolioCcy string                     `json:"pfolio_ccy"`
	Assets       map[string]problemAssetDTO `json:"assets"`
	MaxFeeImpact *float64                  `json:"max_fee_impact,omitempty"`
	IsBuyOnly    bool                       `json:"is_buy_only"`
	UseAllBudget bool                       `json:"use_all_budget"`
}

func (r rebalanceRequest) toDomain() rebalancer.ProblemOptions {
	assets := make(map[string]rebalancer.ProblemAsset, len(r.Assets))
	for symbol, a := range r.Assets {
		assets[symbol] = rebalancer.ProblemAsset{
			Symbol:        symbol,
			Shares:        decimal.NewFromFloat(a.Shares),
			Price:         decimal.NewFromFloat(a.Price),
			TargetWeight:  decimal.NewFromFloat(a.TargetWeight),
			IsWholeShares: a.IsWholeShares,
			Fees:          a.Fees.toDomain(),
		}
	}

	opts := rebalancer.ProblemOptions{
		Budget:       decimal.NewFromFloat(r.Budget),
		PortfolioCcy: r.PortfolioCcy,
		Assets:       assets,
		IsBuyOnly:    r.IsBuyOnly,
		UseAllBudget: r.UseAllBudget,
	}
	if r.MaxFeeImpact != nil {
		v := decimal.NewFromFloat(*r.MaxFeeImpact)
		opts.MaxFeeImpact = &v
	}
	return opts
}

type assetDTO struct {
	Shares float64 `json:"shares"`
	Amount float64 `json:"amount"`
	Weight float64 `json:"weight"`
}

// solutionResponse is the wire representation of rebalancer.Solution.
type solutionResponse struct {
	IsSolved   bool                `json:"is_solved"`
	Assets     map[string]assetDTO `json:"assets"`
	BudgetLeft float64             `json:"budget_left"`
}

func newSolutionResponse(s rebalancer.Solution) solutionResponse {
	assets := make(map[string]assetDTO, len(s.Assets))
	for symbol, a := range s.Assets {
		shares, _ := a.Shares.Float64()
		amount, _ := a.Amount.Float64()
		weight, _ := a.Weight.Float64()
		assets[symbol] = assetDTO{Shares: shares, Amount: amount, Weight: weight}
	}
	budgetLeft, _ := s.BudgetLeft.Float64()
	return solutionResponse{IsSolved: s.IsSolved, Assets: assets, BudgetLeft: budgetLeft}
}
