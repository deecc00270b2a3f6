package liquidity

import (
	"sync"

	"github.com/holiman/uint256"

	"github.com/hxuan190/sor-engine/internal/domain"
)

// DirectPath is a path over a single book.
type DirectPath struct {
	hop Hop

	once    sync.Once
	spend   *uint256.Int
	receive *uint256.Int
}

func NewDirectPath(hop Hop) *DirectPath {
	return &DirectPath{hop: hop}
}

func (p *DirectPath) Pair() domain.TradedPair {
	return p.hop.Spec.Pair
}

func (p *DirectPath) HopCount() int { return 1 }
func (p *DirectPath) IsDirect() bool { return true }

// Hop ignores the index: a direct path has exactly one hop.
func (p *DirectPath) Hop(int) Hop { return p.hop }

func (p *DirectPath) SpendAsset(int) domain.Asset { return p.hop.SpendAsset() }
func (p *DirectPath) ReceiveAsset(int) domain.Asset { return p.hop.ReceiveAsset() }
func (p *DirectPath) SpendDecimals(int) uint8 { return p.hop.SpendDecimals() }
func (p *DirectPath) ReceiveDecimals(int) uint8 { return p.hop.ReceiveDecimals() }
func (p *DirectPath) Snapshot(int) *domain.Snapshot { return p.hop.Snapshot }
func (p *DirectPath) Ticker(int) domain.TickerSpec { return p.hop.Spec }
func (p *DirectPath) IsSellSide(int) bool { return p.hop.SellSide }
func (p *DirectPath) Slice(int) Path { return p }

func (p *DirectPath) load() {
	p.once.Do(func() {
		p.spend = p.hop.SpendLiquidity()
		p.receive = p.hop.ReceiveLiquidity()
	})
}

func (p *DirectPath) SpendableLiquidity() *uint256.Int {
	p.load()
	return p.spend.Clone()
}

func (p *DirectPath) ReceivableLiquidity() *uint256.Int {
	p.load()
	return p.receive.Clone()
}

func (p *DirectPath) IsEnoughLiquidity(spend, receive *uint256.Int) bool {
	if p.hop.Snapshot == nil || len(p.hop.Levels()) == 0 {
		return false
	}
	p.load()
	return enough(p.spend, p.receive, spend, receive)
}

func enough(spendLiq, receiveLiq, spend, receive *uint256.Int) bool {
	if spend != nil && spendLiq.Lt(spend) {
		return false
	}
	if receive != nil && receiveLiq.Lt(receive) {
		return false
	}
	return true
}
