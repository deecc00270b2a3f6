// Package matching computes fillable quantities against a depth ladder.
//
// A level's quote value is volume * price / baseUnit, where baseUnit is
// 10^baseDecimals. Proceeds are floored, costs are ceiled, so an estimate
// never promises more than the book can give.
package matching

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/sor-engine/internal/domain"
)

// Lot carries the quantization rules of a market, in raw base units.
type Lot struct {
	MinQty    *uint256.Int
	Increment *uint256.Int
}

func LotOf(spec domain.TickerSpec) Lot {
	return Lot{MinQty: spec.MinQty, Increment: spec.QtyIncrement}
}

// Matchable floors qty to the increment and returns zero when the result
// is below the minimum tradable quantity.
func (l Lot) Matchable(qty *uint256.Int) *uint256.Int {
	if qty == nil || qty.IsZero() {
		return new(uint256.Int)
	}
	out := qty.Clone()
	if l.Increment != nil && !l.Increment.IsZero() {
		out.Div(out, l.Increment)
		out.Mul(out, l.Increment)
	}
	if l.MinQty != nil && out.Lt(l.MinQty) {
		return new(uint256.Int)
	}
	return out
}

// roundUp raises qty to the next increment multiple.
func (l Lot) roundUp(qty *uint256.Int) *uint256.Int {
	if l.Increment == nil || l.Increment.IsZero() {
		return qty.Clone()
	}
	out := new(uint256.Int).Add(qty, l.Increment)
	out.SubUint64(out, 1)
	out.Div(out, l.Increment)
	return out.Mul(out, l.Increment)
}

// Fill is the outcome of walking a ladder.
type Fill struct {
	// Amount is the proceeds or cost on the side opposite to the request.
	Amount    *uint256.Int
	NumTrades int
	// WorstPrice is the price of the last level touched, zero when nothing matched.
	WorstPrice *uint256.Int
	// Remainder is the part of the request that could not be matched, in request units.
	Remainder *uint256.Int
}

func emptyFill(requested *uint256.Int) Fill {
	return Fill{
		Amount:     new(uint256.Int),
		WorstPrice: new(uint256.Int),
		Remainder:  requested.Clone(),
	}
}

// TotalBaseVolume sums the base volume of all levels.
func TotalBaseVolume(levels []domain.PriceLevel) *uint256.Int {
	total := new(uint256.Int)
	for _, lvl := range levels {
		total.Add(total, lvl.Volume)
	}
	return total
}

// TotalQuoteVolume sums the floored quote value of all levels.
func TotalQuoteVolume(levels []domain.PriceLevel, baseUnit *uint256.Int) *uint256.Int {
	total := new(uint256.Int)
	for _, lvl := range levels {
		total.Add(total, quoteValue(lvl.Volume, lvl.Price, baseUnit))
	}
	return total
}

func quoteValue(volume, price, baseUnit *uint256.Int) *uint256.Int {
	v := new(uint256.Int).Mul(volume, price)
	return v.Div(v, baseUnit)
}

func quoteCost(volume, price, baseUnit *uint256.Int) *uint256.Int {
	v := new(uint256.Int).Mul(volume, price)
	return ceilDiv(v, baseUnit)
}

func ceilDiv(num, den *uint256.Int) *uint256.Int {
	q, r := new(uint256.Int).DivMod(num, den, new(uint256.Int))
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}

func minOf(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a.Clone()
	}
	return b.Clone()
}

// walkBase consumes exactly qty base units from the ladder, which must not
// exceed the ladder's total volume. cost selects ceil (taker pays) or floor
// (taker receives) quote rounding.
func walkBase(levels []domain.PriceLevel, qty, baseUnit *uint256.Int, cost bool) (*uint256.Int, int, *uint256.Int) {
	quote := new(uint256.Int)
	worst := new(uint256.Int)
	remaining := qty.Clone()
	trades := 0
	for _, lvl := range levels {
		if remaining.IsZero() {
			break
		}
		if lvl.Volume.IsZero() {
			continue
		}
		take := minOf(remaining, lvl.Volume)
		if cost {
			quote.Add(quote, quoteCost(take, lvl.Price, baseUnit))
		} else {
			quote.Add(quote, quoteValue(take, lvl.Price, baseUnit))
		}
		remaining.Sub(remaining, take)
		worst.Set(lvl.Price)
		trades++
	}
	return quote, trades, worst
}

// OutQuoteForInBase sells baseQty into the bids and returns the quote proceeds.
// The remainder is the base that was not sold because of depth or lot rules.
func OutQuoteForInBase(bids []domain.PriceLevel, baseQty, baseUnit *uint256.Int, lot Lot) Fill {
	if baseQty == nil || baseQty.IsZero() || len(bids) == 0 {
		return emptyFill(orZero(baseQty))
	}
	fill := lot.Matchable(minOf(baseQty, TotalBaseVolume(bids)))
	if fill.IsZero() {
		return emptyFill(baseQty)
	}
	quote, trades, worst := walkBase(bids, fill, baseUnit, false)
	return Fill{
		Amount:     quote,
		NumTrades:  trades,
		WorstPrice: worst,
		Remainder:  new(uint256.Int).Sub(baseQty, fill),
	}
}

// InQuoteForOutBase buys baseQty from the asks and returns the quote cost.
func InQuoteForOutBase(asks []domain.PriceLevel, baseQty, baseUnit *uint256.Int, lot Lot) Fill {
	if baseQty == nil || baseQty.IsZero() || len(asks) == 0 {
		return emptyFill(orZero(baseQty))
	}
	fill := lot.Matchable(minOf(baseQty, TotalBaseVolume(asks)))
	if fill.IsZero() {
		return emptyFill(baseQty)
	}
	quote, trades, worst := walkBase(asks, fill, baseUnit, true)
	return Fill{
		Amount:     quote,
		NumTrades:  trades,
		WorstPrice: worst,
		Remainder:  new(uint256.Int).Sub(baseQty, fill),
	}
}

// InBaseForOutQuote finds the smallest lot-aligned base quantity whose bid
// proceeds cover quoteQty. The remainder is the quote left uncovered when
// the book is too thin.
func InBaseForOutQuote(bids []domain.PriceLevel, quoteQty, baseUnit *uint256.Int, lot Lot) Fill {
	if quoteQty == nil || quoteQty.IsZero() || len(bids) == 0 {
		return emptyFill(orZero(quoteQty))
	}
	base := new(uint256.Int)
	remaining := quoteQty.Clone()
	for _, lvl := range bids {
		if remaining.IsZero() {
			break
		}
		if lvl.Volume.IsZero() || lvl.Price.IsZero() {
			continue
		}
		levelQuote := quoteValue(lvl.Volume, lvl.Price, baseUnit)
		if levelQuote.Lt(remaining) {
			base.Add(base, lvl.Volume)
			remaining.Sub(remaining, levelQuote)
			continue
		}
		need := ceilDiv(new(uint256.Int).Mul(remaining, baseUnit), lvl.Price)
		base.Add(base, minOf(need, lvl.Volume))
		remaining.Clear()
	}

	total := TotalBaseVolume(bids)
	base = lot.roundUp(base)
	if base.Gt(total) {
		base = lot.Matchable(total)
	} else if lot.MinQty != nil && base.Lt(lot.MinQty) {
		base.Clear()
	}
	if base.IsZero() {
		return emptyFill(quoteQty)
	}

	proceeds, trades, worst := walkBase(bids, base, baseUnit, false)
	uncovered := new(uint256.Int)
	if proceeds.Lt(quoteQty) {
		uncovered.Sub(quoteQty, proceeds)
	}
	return Fill{
		Amount:     base,
		NumTrades:  trades,
		WorstPrice: worst,
		Remainder:  uncovered,
	}
}

// OutBaseForInQuote spends up to quoteQty on the asks and returns the
// lot-aligned base received. The remainder is the quote left unspent.
func OutBaseForInQuote(asks []domain.PriceLevel, quoteQty, baseUnit *uint256.Int, lot Lot) Fill {
	if quoteQty == nil || quoteQty.IsZero() || len(asks) == 0 {
		return emptyFill(orZero(quoteQty))
	}
	base := new(uint256.Int)
	remaining := quoteQty.Clone()
	for _, lvl := range asks {
		if remaining.IsZero() {
			break
		}
		if lvl.Volume.IsZero() || lvl.Price.IsZero() {
			continue
		}
		levelCost := quoteCost(lvl.Volume, lvl.Price, baseUnit)
		if !remaining.Lt(levelCost) {
			base.Add(base, lvl.Volume)
			remaining.Sub(remaining, levelCost)
			continue
		}
		take := new(uint256.Int).Mul(remaining, baseUnit)
		take.Div(take, lvl.Price)
		base.Add(base, take)
		remaining.Clear()
	}

	base = lot.Matchable(base)
	for !base.IsZero() {
		spent, trades, worst := walkBase(asks, base, baseUnit, true)
		if !spent.Gt(quoteQty) {
			return Fill{
				Amount:     base,
				NumTrades:  trades,
				WorstPrice: worst,
				Remainder:  new(uint256.Int).Sub(quoteQty, spent),
			}
		}
		// per-level ceil rounding overshot the budget, step down one lot
		if lot.Increment == nil || lot.Increment.IsZero() || base.Lt(lot.Increment) {
			base = lot.Matchable(new(uint256.Int).SubUint64(base, 1))
		} else {
			base = lot.Matchable(new(uint256.Int).Sub(base, lot.Increment))
		}
	}
	return emptyFill(quoteQty)
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
