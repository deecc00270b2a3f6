package domain

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Asset is the exchange-wide token symbol (e.g. "STRK", "AUSDC").
type Asset string

func (a Asset) String() string {
	return string(a)
}

type AssetInfo struct {
	Symbol   Asset  `json:"symbol"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

// Unit returns 10^decimals, the number of base units in one whole token.
func (a AssetInfo) Unit() *uint256.Int {
	return UnitOf(a.Decimals)
}

// UnitOf returns 10^decimals.
func UnitOf(decimals uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
}

// TradedPair is a market in canonical orientation. Orders always trade
// Base against Quote, prices are quoted in Quote per one whole Base.
type TradedPair struct {
	Base  Asset `json:"base" toml:"base"`
	Quote Asset `json:"quote" toml:"quote"`
}

func (p TradedPair) String() string {
	return fmt.Sprintf("%s/%s", p.Base, p.Quote)
}

// Key is a stable identifier used for cache and storage keys.
func (p TradedPair) Key() string {
	return string(p.Base) + "-" + string(p.Quote)
}

func (p TradedPair) Contains(a Asset) bool {
	return p.Base == a || p.Quote == a
}

// TickerSpec holds the quantization rules of a market. All quantities are
// in raw base-asset units.
type TickerSpec struct {
	Pair           TradedPair
	MinQty         *uint256.Int
	QtyIncrement   *uint256.Int
	PriceIncrement *uint256.Int
	EcosystemBook  bool
}
