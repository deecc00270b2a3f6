package settlement

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/sor-engine/internal/domain"
	"github.com/hxuan190/sor-engine/internal/services/matching"
)

const (
	// FeeScale is the parts-per-million scale of fees.
	FeeScale = 1_000_000
	// BipsScale is the parts-per-10,000 scale of slippage and price impact.
	BipsScale = 10_000
	// MaxSlippageBips caps slippage at 100%.
	MaxSlippageBips = BipsScale
	// RateDigits is the number of fractional digits of rate strings.
	RateDigits = 10
)

var (
	feeScale  = uint256.NewInt(FeeScale)
	bipsScale = uint256.NewInt(BipsScale)
)

// PostFee returns amount * (1e6 - feePpm) / 1e6.
func PostFee(amount *uint256.Int, feePpm uint64) *uint256.Int {
	if feePpm >= FeeScale {
		return new(uint256.Int)
	}
	out := new(uint256.Int).Mul(amount, uint256.NewInt(FeeScale-feePpm))
	return out.Div(out, feeScale)
}

func slippageOf(amount *uint256.Int, bips uint64) *uint256.Int {
	out := new(uint256.Int).Mul(amount, uint256.NewInt(bips))
	return out.Div(out, bipsScale)
}

// SpendSlippage widens an amount to pay: amount + amount*bips/10000.
func SpendSlippage(amount *uint256.Int, bips uint64) *uint256.Int {
	return new(uint256.Int).Add(amount, slippageOf(amount, bips))
}

// ReceiveSlippage narrows an amount to receive: amount - amount*bips/10000.
func ReceiveSlippage(amount *uint256.Int, bips uint64) *uint256.Int {
	return new(uint256.Int).Sub(amount, slippageOf(amount, bips))
}

// wrapToSlippageBase applies slippage to a base quantity and aligns the
// result to the lot. On the receive side a result that floored past the
// tolerance is bumped up by one increment.
func wrapToSlippageBase(expected *uint256.Int, bips uint64, lot matching.Lot, spendSide bool) *uint256.Int {
	if expected.IsZero() {
		return new(uint256.Int)
	}
	var slipped *uint256.Int
	if spendSide {
		slipped = SpendSlippage(expected, bips)
	} else {
		slipped = ReceiveSlippage(expected, bips)
	}
	actual := lot.Matchable(slipped)
	if spendSide || lot.Increment == nil {
		return actual
	}
	kept := new(uint256.Int).Mul(actual, bipsScale)
	kept.Div(kept, expected)
	lost := new(uint256.Int).Sub(bipsScale, kept)
	if lost.Gt(uint256.NewInt(bips)) {
		return actual.Add(actual, lot.Increment)
	}
	return actual
}

// MinQtyInQuote converts a minimum base quantity to quote at the given price.
func MinQtyInQuote(minQty, price, baseUnit *uint256.Int) *uint256.Int {
	if minQty == nil {
		return new(uint256.Int)
	}
	out := new(uint256.Int).Mul(minQty, price)
	return out.Div(out, baseUnit)
}

// Rate is the amount paid per one whole received token, formatted in pay
// decimals and truncated to RateDigits.
func Rate(pay, receive *uint256.Int, payDecimals, receiveDecimals uint8) string {
	if receive == nil || receive.IsZero() {
		return ""
	}
	raw := new(uint256.Int).Mul(pay, domain.UnitOf(receiveDecimals))
	raw.Div(raw, receive)
	return decimal.NewFromBigInt(raw.ToBig(), -int32(payDecimals)).Truncate(RateDigits).String()
}

// sellImpactBips is how far the worst bid touched is below the best bid.
func sellImpactBips(worst, bestBid *uint256.Int) int64 {
	if bestBid == nil || bestBid.IsZero() {
		return 0
	}
	ratio := new(uint256.Int).Mul(worst, bipsScale)
	ratio.Div(ratio, bestBid)
	return BipsScale - int64(ratio.Uint64())
}

// buyImpactBips is how far the worst ask touched is above the best ask.
func buyImpactBips(worst, bestAsk *uint256.Int) int64 {
	if bestAsk == nil || bestAsk.IsZero() {
		return 0
	}
	ratio := new(uint256.Int).Mul(worst, bipsScale)
	ratio.Div(ratio, bestAsk)
	return int64(ratio.Uint64()) - BipsScale
}

// ComposeImpactBips compounds per-hop price impacts:
// 10000 * prod(1 + impact_i/10000) - 10000, in integer bips.
func ComposeImpactBips(impacts []int64) int64 {
	acc := int64(BipsScale)
	for _, imp := range impacts {
		acc = acc * (BipsScale + imp) / BipsScale
	}
	return acc - BipsScale
}

func clampSlippage(bips uint64) uint64 {
	if bips > MaxSlippageBips {
		return MaxSlippageBips
	}
	return bips
}
