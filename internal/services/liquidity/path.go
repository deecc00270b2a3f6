// Package liquidity presents a route of one or more order books as a
// uniform read-only path with per-hop token data and aggregate liquidity.
package liquidity

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/sor-engine/internal/domain"
	"github.com/hxuan190/sor-engine/internal/services/matching"
)

// Path is a read-only view over the books of a route. Index arguments are
// hop indexes in pay-to-receive order.
type Path interface {
	// Pair is the canonical pair between the path's first spend asset and
	// last receive asset.
	Pair() domain.TradedPair
	HopCount() int
	IsDirect() bool
	Hop(i int) Hop

	SpendAsset(i int) domain.Asset
	ReceiveAsset(i int) domain.Asset
	SpendDecimals(i int) uint8
	ReceiveDecimals(i int) uint8
	Snapshot(i int) *domain.Snapshot
	Ticker(i int) domain.TickerSpec
	IsSellSide(i int) bool

	// SpendableLiquidity is the most the path can absorb on the pay side.
	SpendableLiquidity() *uint256.Int
	// ReceivableLiquidity is the most the path can deliver on the receive side.
	ReceivableLiquidity() *uint256.Int
	IsEnoughLiquidity(spend, receive *uint256.Int) bool

	// Slice returns a single-hop view of hop i.
	Slice(i int) Path
}

// Hop is one book of a path.
type Hop struct {
	Spec     domain.TickerSpec
	Snapshot *domain.Snapshot
	// SellSide is true when the hop sells the pair's base into the bids.
	SellSide      bool
	BaseDecimals  uint8
	QuoteDecimals uint8
}

func (h Hop) BaseUnit() *uint256.Int {
	return domain.UnitOf(h.BaseDecimals)
}

func (h Hop) Lot() matching.Lot {
	return matching.LotOf(h.Spec)
}

func (h Hop) SpendAsset() domain.Asset {
	if h.SellSide {
		return h.Spec.Pair.Base
	}
	return h.Spec.Pair.Quote
}

func (h Hop) ReceiveAsset() domain.Asset {
	if h.SellSide {
		return h.Spec.Pair.Quote
	}
	return h.Spec.Pair.Base
}

func (h Hop) SpendDecimals() uint8 {
	if h.SellSide {
		return h.BaseDecimals
	}
	return h.QuoteDecimals
}

func (h Hop) ReceiveDecimals() uint8 {
	if h.SellSide {
		return h.QuoteDecimals
	}
	return h.BaseDecimals
}

// Levels returns the book side this hop consumes.
func (h Hop) Levels() []domain.PriceLevel {
	return h.Snapshot.Side(h.SellSide)
}

// SpendLiquidity is the total the hop's book side can absorb: base on the
// bids when selling, quote on the asks when buying.
func (h Hop) SpendLiquidity() *uint256.Int {
	if h.SellSide {
		return matching.TotalBaseVolume(h.Levels())
	}
	return matching.TotalQuoteVolume(h.Levels(), h.BaseUnit())
}

// ReceiveLiquidity is the total the hop's book side can deliver.
func (h Hop) ReceiveLiquidity() *uint256.Int {
	if h.SellSide {
		return matching.TotalQuoteVolume(h.Levels(), h.BaseUnit())
	}
	return matching.TotalBaseVolume(h.Levels())
}
