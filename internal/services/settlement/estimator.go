// Package settlement turns a request and a liquidity path into a concrete,
// tradable settlement computed purely from book snapshots.
package settlement

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/sor-engine/internal/domain"
	"github.com/hxuan190/sor-engine/internal/services/liquidity"
	"github.com/hxuan190/sor-engine/internal/services/matching"
)

// Params is a settlement request. Amount is in raw units of the pay asset
// when Anchor is AnchorPay, of the receive asset otherwise.
type Params struct {
	Amount         *uint256.Int
	Anchor         domain.Anchor
	ExchangeFeePpm uint64
	RouterFeePpm   uint64
	SlippageBips   uint64
}

func (p Params) totalFeePpm() uint64 {
	return p.ExchangeFeePpm + p.RouterFeePpm
}

// receiveHaircutBips trims base bought for an exact quote so the order
// stays fillable after per-level rounding on the exchange.
const receiveHaircutBips = 9996

// minReceiveKeepBips keeps a hair of headroom under the quote target when
// selling for an exact quote.
const minReceiveKeepBips = 9999

// EstimateHop computes the settlement of hop 0 of path.
func EstimateHop(path liquidity.Path, params Params) domain.Estimate {
	if path == nil || path.HopCount() == 0 {
		return domain.NoViableSettlement{Reason: domain.ReasonInvalidPath}
	}
	if params.Amount == nil || params.Amount.IsZero() {
		return domain.NoViableSettlement{Reason: domain.ReasonZeroTradable}
	}
	hop := path.Hop(0)
	if hop.Snapshot == nil || len(hop.Levels()) == 0 {
		return domain.NoViableSettlement{Reason: domain.ReasonEmptyBook}
	}
	params.SlippageBips = clampSlippage(params.SlippageBips)

	e := hopEstimator{hop: hop, params: params, lot: hop.Lot(), baseUnit: hop.BaseUnit()}
	switch {
	case hop.SellSide && params.Anchor == domain.AnchorPay:
		return e.sellExactBase()
	case hop.SellSide:
		return e.sellForExactQuote()
	case params.Anchor == domain.AnchorPay:
		return e.buyForExactQuote()
	default:
		return e.buyExactBase()
	}
}

type hopEstimator struct {
	hop      liquidity.Hop
	params   Params
	lot      matching.Lot
	baseUnit *uint256.Int
}

func (e hopEstimator) settlement(cmd domain.CalcCommand) *domain.Settlement {
	side := domain.SideBuy
	if e.hop.SellSide {
		side = domain.SideSell
	}
	return &domain.Settlement{
		Command:      cmd,
		Side:         side,
		Pair:         e.hop.Spec.Pair,
		SpendAsset:   e.hop.SpendAsset(),
		ReceiveAsset: e.hop.ReceiveAsset(),
	}
}

func (e hopEstimator) rate(pay, receive *uint256.Int) string {
	return Rate(pay, receive, e.hop.SpendDecimals(), e.hop.ReceiveDecimals())
}

// sellExactBase sells the requested base into the bids.
func (e hopEstimator) sellExactBase() domain.Estimate {
	bids := e.hop.Snapshot.Bids
	fill := matching.OutQuoteForInBase(bids, e.params.Amount, e.baseUnit, e.lot)
	base := new(uint256.Int).Sub(e.params.Amount, fill.Remainder)
	if base.IsZero() {
		return domain.NoViableSettlement{Reason: domain.ReasonZeroTradable}
	}
	receivePostFee := PostFee(fill.Amount, e.params.totalFeePpm())
	if receivePostFee.IsZero() {
		return domain.NoViableSettlement{Reason: domain.ReasonZeroAfterFee}
	}
	minReceive := PostFee(ReceiveSlippage(fill.Amount, e.params.SlippageBips), e.params.totalFeePpm())
	bestBid, _ := e.hop.Snapshot.BestBid()

	s := e.settlement(domain.SellExactBaseForWhateverQuote)
	s.NumTrades = fill.NumTrades
	s.AmountIn = base
	s.AmountOut = fill.Amount
	s.Rate = e.rate(base, receivePostFee)
	s.ProtectionPrice = fill.WorstPrice
	s.ReceivePostFee = receivePostFee
	s.MinReceiveAmount = minReceive
	s.SpendSlippaged = base.Clone()
	s.ReceiveSlippaged = minReceive.Clone()
	s.PriceImpactBips = sellImpactBips(fill.WorstPrice, bestBid)
	s.Quantity = domain.Quantity{BaseUnit: e.baseUnit, BaseQty: base.Clone(), QuoteQty: new(uint256.Int)}
	return s
}

// sellForExactQuote finds the base to sell for the requested quote. The
// base estimate gets one increment of slack and the receive is re-derived
// from it, so integer rounding at the level boundary cannot leave the
// caller short.
func (e hopEstimator) sellForExactQuote() domain.Estimate {
	bids := e.hop.Snapshot.Bids
	target := matching.InBaseForOutQuote(bids, e.params.Amount, e.baseUnit, e.lot)
	if target.Amount.IsZero() {
		return domain.NoViableSettlement{Reason: domain.ReasonZeroTradable}
	}
	coveredQuote := new(uint256.Int).Sub(e.params.Amount, target.Remainder)

	spend := target.Amount.Clone()
	if e.lot.Increment != nil {
		spend.Add(spend, e.lot.Increment)
	}
	fill := matching.OutQuoteForInBase(bids, spend, e.baseUnit, e.lot)
	spend.Sub(spend, fill.Remainder)
	if spend.IsZero() {
		return domain.NoViableSettlement{Reason: domain.ReasonZeroTradable}
	}

	bestBid, _ := e.hop.Snapshot.BestBid()
	if fill.Amount.Lt(MinQtyInQuote(e.lot.MinQty, bestBid, e.baseUnit)) {
		return domain.NoViableSettlement{Reason: domain.ReasonBelowMinimum}
	}
	receivePostFee := PostFee(fill.Amount, e.params.totalFeePpm())
	if receivePostFee.IsZero() {
		return domain.NoViableSettlement{Reason: domain.ReasonZeroAfterFee}
	}
	spendSlippaged := wrapToSlippageBase(spend, e.params.SlippageBips, e.lot, true)
	kept := new(uint256.Int).Mul(coveredQuote, uint256.NewInt(minReceiveKeepBips))
	kept.Div(kept, bipsScale)

	s := e.settlement(domain.SellWhateverBaseForExactQuote)
	s.NumTrades = fill.NumTrades
	s.AmountIn = spend
	s.AmountOut = fill.Amount
	s.Rate = e.rate(spend, receivePostFee)
	s.ProtectionPrice = fill.WorstPrice
	s.ReceivePostFee = receivePostFee
	s.MinReceiveAmount = PostFee(kept, e.params.totalFeePpm())
	s.SpendSlippaged = spendSlippaged
	s.ReceiveSlippaged = receivePostFee.Clone()
	s.PriceImpactBips = sellImpactBips(fill.WorstPrice, bestBid)
	s.Quantity = domain.Quantity{BaseUnit: e.baseUnit, BaseQty: spendSlippaged.Clone(), QuoteQty: fill.Amount.Clone()}
	return s
}

// buyForExactQuote spends the requested quote on the asks.
func (e hopEstimator) buyForExactQuote() domain.Estimate {
	asks := e.hop.Snapshot.Asks
	fill := matching.OutBaseForInQuote(asks, e.params.Amount, e.baseUnit, e.lot)
	haircut := new(uint256.Int).Mul(fill.Amount, uint256.NewInt(receiveHaircutBips))
	haircut.Div(haircut, bipsScale)
	receive := e.lot.Matchable(haircut)
	if receive.IsZero() {
		return domain.NoViableSettlement{Reason: domain.ReasonZeroTradable}
	}
	pay := new(uint256.Int).Sub(e.params.Amount, fill.Remainder)

	bestAsk, _ := e.hop.Snapshot.BestAsk()
	if pay.Lt(MinQtyInQuote(e.lot.MinQty, bestAsk, e.baseUnit)) {
		return domain.NoViableSettlement{Reason: domain.ReasonBelowMinimum}
	}
	receivePostFee := PostFee(receive, e.params.totalFeePpm())
	if receivePostFee.IsZero() {
		return domain.NoViableSettlement{Reason: domain.ReasonZeroAfterFee}
	}
	receiveSlippaged := PostFee(wrapToSlippageBase(receive, e.params.SlippageBips, e.lot, false), e.params.totalFeePpm())

	s := e.settlement(domain.BuyWhateverBaseForExactQuote)
	s.NumTrades = fill.NumTrades
	s.AmountIn = pay
	s.AmountOut = receive
	s.Rate = e.rate(pay, receivePostFee)
	s.ProtectionPrice = fill.WorstPrice
	s.ReceivePostFee = receivePostFee
	s.MinReceiveAmount = receiveSlippaged
	s.SpendSlippaged = pay.Clone()
	s.ReceiveSlippaged = receiveSlippaged.Clone()
	s.PriceImpactBips = buyImpactBips(fill.WorstPrice, bestAsk)
	s.Quantity = domain.Quantity{BaseUnit: e.baseUnit, BaseQty: new(uint256.Int), QuoteQty: pay.Clone()}
	return s
}

// buyExactBase buys the requested base from the asks.
func (e hopEstimator) buyExactBase() domain.Estimate {
	asks := e.hop.Snapshot.Asks
	base := e.lot.Matchable(e.params.Amount)
	fill := matching.InQuoteForOutBase(asks, base, e.baseUnit, e.lot)
	base.Sub(base, fill.Remainder)
	if base.IsZero() {
		return domain.NoViableSettlement{Reason: domain.ReasonZeroTradable}
	}
	receivePostFee := PostFee(base, e.params.totalFeePpm())
	if receivePostFee.IsZero() {
		return domain.NoViableSettlement{Reason: domain.ReasonZeroAfterFee}
	}
	spendSlippaged := SpendSlippage(fill.Amount, e.params.SlippageBips)
	bestAsk, _ := e.hop.Snapshot.BestAsk()

	s := e.settlement(domain.BuyExactBaseForWhateverQuote)
	s.NumTrades = fill.NumTrades
	s.AmountIn = fill.Amount
	s.AmountOut = base
	s.Rate = e.rate(fill.Amount, receivePostFee)
	s.ProtectionPrice = fill.WorstPrice
	s.ReceivePostFee = receivePostFee
	s.MinReceiveAmount = receivePostFee.Clone()
	s.SpendSlippaged = spendSlippaged
	s.ReceiveSlippaged = receivePostFee.Clone()
	s.PriceImpactBips = buyImpactBips(fill.WorstPrice, bestAsk)
	s.Quantity = domain.Quantity{BaseUnit: e.baseUnit, BaseQty: base.Clone(), QuoteQty: spendSlippaged.Clone()}
	return s
}
