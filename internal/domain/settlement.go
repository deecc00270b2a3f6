package domain

import "github.com/holiman/uint256"

// Anchor tells which side of a swap request is fixed by the caller.
type Anchor uint8

const (
	AnchorPay Anchor = iota
	AnchorReceive
)

func (a Anchor) String() string {
	switch a {
	case AnchorPay:
		return "pay"
	case AnchorReceive:
		return "receive"
	default:
		return "UNKNOWN"
	}
}

type OrderSide uint8

const (
	SideSell OrderSide = iota
	SideBuy
)

func (s OrderSide) String() string {
	if s == SideBuy {
		return "BUY"
	}
	return "SELL"
}

// CalcCommand identifies which of the four single-hop cases produced a settlement.
type CalcCommand uint8

const (
	SellWhateverBaseForExactQuote CalcCommand = iota + 1
	BuyWhateverBaseForExactQuote
	BuyExactBaseForWhateverQuote
	SellExactBaseForWhateverQuote
)

func (c CalcCommand) String() string {
	switch c {
	case SellWhateverBaseForExactQuote:
		return "SellWhateverBaseForExactQuote"
	case BuyWhateverBaseForExactQuote:
		return "BuyWhateverBaseForExactQuote"
	case BuyExactBaseForWhateverQuote:
		return "BuyExactBaseForWhateverQuote"
	case SellExactBaseForWhateverQuote:
		return "SellExactBaseForWhateverQuote"
	default:
		return "UNKNOWN"
	}
}

// IsExactSell reports whether the pay side was fixed and the receive side solved.
func (c CalcCommand) IsExactSell() bool {
	return c == SellExactBaseForWhateverQuote || c == BuyWhateverBaseForExactQuote
}

// Quantity is the order-building view of a settlement.
type Quantity struct {
	BaseUnit *uint256.Int
	BaseQty  *uint256.Int
	QuoteQty *uint256.Int
}

// Estimate is the result of matching a request against a path. It is either
// a *Settlement or a NoViableSettlement; no other implementations exist.
type Estimate interface {
	Viable() bool
	estimate()
}

type NoViableReason uint8

const (
	ReasonEmptyBook NoViableReason = iota + 1
	ReasonZeroTradable
	ReasonBelowMinimum
	ReasonZeroAfterFee
	ReasonInvalidPath
)

func (r NoViableReason) String() string {
	switch r {
	case ReasonEmptyBook:
		return "empty_book"
	case ReasonZeroTradable:
		return "zero_tradable"
	case ReasonBelowMinimum:
		return "below_minimum"
	case ReasonZeroAfterFee:
		return "zero_after_fee"
	case ReasonInvalidPath:
		return "invalid_path"
	default:
		return "unknown"
	}
}

// NoViableSettlement is the terminal sentinel: nothing can be traded for the request.
type NoViableSettlement struct {
	Reason NoViableReason
	// Hop is the index of the hop that failed within a multi-hop chain.
	Hop int
}

func (NoViableSettlement) Viable() bool { return false }
func (NoViableSettlement) estimate()    {}

// Settlement describes a tradable outcome at the time of the snapshot it
// was computed from. It is immutable once returned.
type Settlement struct {
	Command CalcCommand
	Side    OrderSide
	Pair    TradedPair

	SpendAsset   Asset
	ReceiveAsset Asset

	NumTrades int
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	Rate      string

	// ProtectionPrice is the worst price touched while consuming the depth.
	ProtectionPrice  *uint256.Int
	ReceivePostFee   *uint256.Int
	MinReceiveAmount *uint256.Int
	SpendSlippaged   *uint256.Int
	ReceiveSlippaged *uint256.Int
	PriceImpactBips  int64

	Quantity Quantity

	// SubSettlements is set only for multi-hop settlements, ordered from pay to receive.
	SubSettlements []*Settlement
}

func (*Settlement) Viable() bool { return true }
func (*Settlement) estimate()    {}

func (s *Settlement) IsMultiHop() bool {
	return len(s.SubSettlements) > 1
}

// First returns the settlement of the first hop (the settlement itself for single hop).
func (s *Settlement) First() *Settlement {
	if len(s.SubSettlements) > 0 {
		return s.SubSettlements[0]
	}
	return s
}

// Last returns the settlement of the last hop.
func (s *Settlement) Last() *Settlement {
	if n := len(s.SubSettlements); n > 0 {
		return s.SubSettlements[n-1]
	}
	return s
}

// Protection band applied by order builders on top of the estimated
// protection price, in percent.
const (
	BuyProtectionBandPercent  = 120
	SellProtectionBandPercent = 80
)

// BoundedProtectionPrice widens the protection price of the first hop by
// the asymmetric band and floors it to the price tick.
func (s *Settlement) BoundedProtectionPrice(priceTick *uint256.Int) *uint256.Int {
	first := s.First()
	if first.ProtectionPrice == nil {
		return new(uint256.Int)
	}
	band := uint64(SellProtectionBandPercent)
	if first.Side == SideBuy {
		band = BuyProtectionBandPercent
	}
	price := new(uint256.Int).Mul(first.ProtectionPrice, uint256.NewInt(band))
	price.Div(price, uint256.NewInt(100))
	if priceTick != nil && !priceTick.IsZero() {
		price.Div(price, priceTick)
		price.Mul(price, priceTick)
	}
	return price
}

// AsSettlement unwraps a viable estimate.
func AsSettlement(e Estimate) (*Settlement, bool) {
	s, ok := e.(*Settlement)
	return s, ok && s != nil
}
