package liquidity

import (
	"sync"

	"github.com/holiman/uint256"

	"github.com/hxuan190/sor-engine/internal/domain"
)

// dampingScale is the fixed-point scale of the damping factor (1.0 = 1e18).
var dampingScale = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))

// ComplexPath is a path over two or more books. Its liquidity is the first
// (or last) hop's raw liquidity damped by every bottleneck along the way.
type ComplexPath struct {
	pair domain.TradedPair
	hops []Hop

	spendOnce     sync.Once
	spendFactor   *uint256.Int
	receiveOnce   sync.Once
	receiveFactor *uint256.Int
}

// NewComplexPath wraps hops ordered from pay to receive. pair is the
// canonical pair between the first spend asset and the last receive asset.
func NewComplexPath(pair domain.TradedPair, hops []Hop) *ComplexPath {
	cp := make([]Hop, len(hops))
	copy(cp, hops)
	return &ComplexPath{pair: pair, hops: cp}
}

func (p *ComplexPath) Pair() domain.TradedPair { return p.pair }
func (p *ComplexPath) HopCount() int { return len(p.hops) }
func (p *ComplexPath) IsDirect() bool { return false }
func (p *ComplexPath) Hop(i int) Hop { return p.hops[i] }

func (p *ComplexPath) SpendAsset(i int) domain.Asset { return p.hops[i].SpendAsset() }
func (p *ComplexPath) ReceiveAsset(i int) domain.Asset { return p.hops[i].ReceiveAsset() }
func (p *ComplexPath) SpendDecimals(i int) uint8 { return p.hops[i].SpendDecimals() }
func (p *ComplexPath) ReceiveDecimals(i int) uint8 { return p.hops[i].ReceiveDecimals() }
func (p *ComplexPath) Snapshot(i int) *domain.Snapshot { return p.hops[i].Snapshot }
func (p *ComplexPath) Ticker(i int) domain.TickerSpec { return p.hops[i].Spec }
func (p *ComplexPath) IsSellSide(i int) bool { return p.hops[i].SellSide }

func (p *ComplexPath) Slice(i int) Path {
	return NewDirectPath(p.hops[i])
}

// SpendableLiquidity scales hop 0's spend liquidity by the spend factor.
func (p *ComplexPath) SpendableLiquidity() *uint256.Int {
	if len(p.hops) == 0 {
		return new(uint256.Int)
	}
	out := new(uint256.Int).Mul(p.hops[0].SpendLiquidity(), p.SpendFactor())
	return out.Div(out, dampingScale)
}

// ReceivableLiquidity scales the last hop's receive liquidity by the receive factor.
func (p *ComplexPath) ReceivableLiquidity() *uint256.Int {
	if len(p.hops) == 0 {
		return new(uint256.Int)
	}
	out := new(uint256.Int).Mul(p.hops[len(p.hops)-1].ReceiveLiquidity(), p.ReceiveFactor())
	return out.Div(out, dampingScale)
}

func (p *ComplexPath) IsEnoughLiquidity(spend, receive *uint256.Int) bool {
	if len(p.hops) == 0 {
		return false
	}
	return enough(p.SpendableLiquidity(), p.ReceivableLiquidity(), spend, receive)
}

// SpendFactor is the product over hops 1..n-1 of
// min(1, spendLiquidity(i) / receiveLiquidity(i-1)), scaled by 1e18.
func (p *ComplexPath) SpendFactor() *uint256.Int {
	p.spendOnce.Do(func() {
		factor := dampingScale.Clone()
		for i := 1; i < len(p.hops); i++ {
			upstream := p.hops[i-1].ReceiveLiquidity()
			if upstream.IsZero() {
				factor.Clear()
				break
			}
			factor = damp(factor, p.hops[i].SpendLiquidity(), upstream)
		}
		p.spendFactor = factor
	})
	return p.spendFactor.Clone()
}

// ReceiveFactor is the product over hops n-1..1 of
// min(1, receiveLiquidity(i-1) / spendLiquidity(i)), scaled by 1e18.
func (p *ComplexPath) ReceiveFactor() *uint256.Int {
	p.receiveOnce.Do(func() {
		factor := dampingScale.Clone()
		for i := len(p.hops) - 1; i >= 1; i-- {
			downstream := p.hops[i].SpendLiquidity()
			if downstream.IsZero() {
				factor.Clear()
				break
			}
			factor = damp(factor, p.hops[i-1].ReceiveLiquidity(), downstream)
		}
		p.receiveFactor = factor
	})
	return p.receiveFactor.Clone()
}

// damp multiplies factor by min(1, num/den) in fixed point.
func damp(factor, num, den *uint256.Int) *uint256.Int {
	ratio := new(uint256.Int).Mul(num, dampingScale)
	ratio.Div(ratio, den)
	if ratio.Gt(dampingScale) {
		ratio.Set(dampingScale)
	}
	out := new(uint256.Int).Mul(factor, ratio)
	return out.Div(out, dampingScale)
}
