package settlement

import (
	"reflect"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/sor-engine/internal/domain"
	"github.com/hxuan190/sor-engine/internal/services/liquidity"
)

var (
	strkUSDC = domain.TradedPair{Base: "STRK", Quote: "AUSDC"}
	ethUSDC  = domain.TradedPair{Base: "AETH", Quote: "AUSDC"}
	usdcUSDT = domain.TradedPair{Base: "AUSDC", Quote: "AUSDT"}
	ethUSDT  = domain.TradedPair{Base: "AETH", Quote: "AUSDT"}
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

// amount parses a decimal string into raw units, e.g. amount("99.5", 6).
func amount(t testing.TB, s string, decimals uint8) *uint256.Int {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad amount %q: %v", s, err)
	}
	v, overflow := uint256.FromBig(d.Shift(int32(decimals)).BigInt())
	if overflow {
		t.Fatalf("amount %q overflows", s)
	}
	return v
}

type book struct {
	bids, asks [][2]string
}

func makeHop(t testing.TB, pair domain.TradedPair, sell bool, baseDec, quoteDec uint8, b book) liquidity.Hop {
	t.Helper()
	snap := &domain.Snapshot{Pair: pair}
	for _, l := range b.bids {
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: amount(t, l[0], quoteDec), Volume: amount(t, l[1], baseDec), Orders: 1})
	}
	for _, l := range b.asks {
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: amount(t, l[0], quoteDec), Volume: amount(t, l[1], baseDec), Orders: 1})
	}
	inc := domain.UnitOf(baseDec - 2)
	return liquidity.Hop{
		Spec: domain.TickerSpec{
			Pair:           pair,
			MinQty:         inc,
			QtyIncrement:   inc,
			PriceIncrement: u(1),
		},
		Snapshot:      snap,
		SellSide:      sell,
		BaseDecimals:  baseDec,
		QuoteDecimals: quoteDec,
	}
}

var strkBook = book{
	bids: [][2]string{{"100", "10"}, {"99.5", "20"}, {"99", "50"}},
	asks: [][2]string{{"101", "10"}, {"102", "100"}},
}

func strkPath(t testing.TB, sell bool) liquidity.Path {
	return liquidity.NewDirectPath(makeHop(t, strkUSDC, sell, 18, 6, strkBook))
}

func mustSettle(t *testing.T, e domain.Estimate) *domain.Settlement {
	t.Helper()
	s, ok := domain.AsSettlement(e)
	if !ok {
		t.Fatalf("expected a settlement, got %+v", e)
	}
	return s
}

func TestEndToEndSellStrk(t *testing.T) {
	path := liquidity.NewDirectPath(makeHop(t, strkUSDC, true, 18, 6, book{
		bids: [][2]string{{"100", "1000"}},
	}))
	s := mustSettle(t, Estimate(path, Params{
		Amount:         amount(t, "50", 18),
		Anchor:         domain.AnchorPay,
		ExchangeFeePpm: 1000,
		SlippageBips:   100,
	}))

	if s.Side != domain.SideSell || s.Command != domain.SellExactBaseForWhateverQuote {
		t.Errorf("side = %s command = %s", s.Side, s.Command)
	}
	if s.NumTrades < 1 {
		t.Errorf("numTrades = %d", s.NumTrades)
	}
	// (50 * 100) * (1 - 0.001) in raw AUSDC, and 1% below it
	expected := amount(t, "4995", 6)
	floor := new(uint256.Int).Div(new(uint256.Int).Mul(expected, u(99)), u(100))
	if s.MinReceiveAmount.Gt(expected) || s.MinReceiveAmount.Lt(floor) {
		t.Errorf("minReceive = %s, want in [%s, %s]", s.MinReceiveAmount, floor, expected)
	}
	if s.MinReceiveAmount.Uint64() != 4_945_050_000 {
		t.Errorf("minReceive = %s, want 4945050000", s.MinReceiveAmount)
	}
	if s.Rate != "0.01001001" {
		t.Errorf("rate = %q", s.Rate)
	}
	if s.PriceImpactBips != 0 {
		t.Errorf("impact = %d", s.PriceImpactBips)
	}
}

func TestSellExactBaseSlippageThenFee(t *testing.T) {
	path := strkPath(t, true)
	for _, fee := range []uint64{0, 1000} {
		for _, bips := range []uint64{0, 1, 37, 100, 2500, 9999, 10000} {
			s := mustSettle(t, Estimate(path, Params{
				Amount:         amount(t, "25", 18),
				Anchor:         domain.AnchorPay,
				ExchangeFeePpm: fee,
				SlippageBips:   bips,
			}))
			if fee == 0 && !s.ReceivePostFee.Eq(s.AmountOut) {
				t.Fatalf("no fee: post fee %s != out %s", s.ReceivePostFee, s.AmountOut)
			}
			if s.MinReceiveAmount.Gt(s.ReceivePostFee) {
				t.Fatalf("fee %d bips %d: minReceive %s above %s", fee, bips, s.MinReceiveAmount, s.ReceivePostFee)
			}
			// slippage comes off the raw receive, the fee after it
			slipped := new(uint256.Int).Sub(s.AmountOut, new(uint256.Int).Div(new(uint256.Int).Mul(s.AmountOut, u(bips)), u(10000)))
			want := PostFee(slipped, fee)
			if !s.MinReceiveAmount.Eq(want) {
				t.Errorf("fee %d bips %d: minReceive = %s, want %s", fee, bips, s.MinReceiveAmount, want)
			}
			if !s.ReceiveSlippaged.Eq(s.MinReceiveAmount) {
				t.Errorf("fee %d bips %d: receiveSlippaged = %s, want %s", fee, bips, s.ReceiveSlippaged, s.MinReceiveAmount)
			}
		}
	}
}

func TestSlippageIsCapped(t *testing.T) {
	path := strkPath(t, true)
	s := mustSettle(t, Estimate(path, Params{Amount: amount(t, "5", 18), SlippageBips: 50_000}))
	if !s.MinReceiveAmount.IsZero() {
		t.Errorf("minReceive = %s, want 0 at 100%% slippage", s.MinReceiveAmount)
	}
}

func TestEstimateIdempotent(t *testing.T) {
	for _, tc := range []struct {
		name   string
		sell   bool
		anchor domain.Anchor
		amt    *uint256.Int
	}{
		{"sell exact base", true, domain.AnchorPay, amount(t, "12.34", 18)},
		{"sell for quote", true, domain.AnchorReceive, amount(t, "1500", 6)},
		{"buy for quote", false, domain.AnchorPay, amount(t, "1500", 6)},
		{"buy exact base", false, domain.AnchorReceive, amount(t, "20", 18)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := Params{Amount: tc.amt, Anchor: tc.anchor, ExchangeFeePpm: 1000, RouterFeePpm: 500, SlippageBips: 100}
			a := Estimate(strkPath(t, tc.sell), p)
			b := Estimate(strkPath(t, tc.sell), p)
			if !a.Viable() {
				t.Fatalf("not viable: %+v", a)
			}
			if !reflect.DeepEqual(a, b) {
				t.Errorf("estimates differ:\n%+v\n%+v", a, b)
			}
		})
	}
}

func TestSellForExactQuote(t *testing.T) {
	requested := amount(t, "1500", 6)
	s := mustSettle(t, Estimate(strkPath(t, true), Params{
		Amount:       requested,
		Anchor:       domain.AnchorReceive,
		SlippageBips: 100,
	}))
	if s.Command != domain.SellWhateverBaseForExactQuote {
		t.Fatalf("command = %s", s.Command)
	}
	// 15.03 STRK covers the target; one increment of slack on top
	if want := amount(t, "15.04", 18); !s.AmountIn.Eq(want) {
		t.Errorf("amountIn = %s, want %s", s.AmountIn, want)
	}
	if s.AmountOut.Lt(requested) {
		t.Errorf("amountOut %s below requested %s", s.AmountOut, requested)
	}
	if s.MinReceiveAmount.Uint64() != 1_499_850_000 {
		t.Errorf("minReceive = %s", s.MinReceiveAmount)
	}
	if s.NumTrades != 2 || s.ProtectionPrice.Uint64() != 99_500_000 {
		t.Errorf("trades = %d protection = %s", s.NumTrades, s.ProtectionPrice)
	}
	if s.PriceImpactBips != 50 {
		t.Errorf("impact = %d, want 50", s.PriceImpactBips)
	}
	if !s.SpendSlippaged.Gt(s.AmountIn) {
		t.Errorf("spendSlippaged %s not above amountIn %s", s.SpendSlippaged, s.AmountIn)
	}
}

func TestSellForExactQuoteRoundTrip(t *testing.T) {
	path := strkPath(t, true)
	lot := path.Hop(0).Lot()
	bestBid, _ := path.Snapshot(0).BestBid()
	slack := MinQtyInQuote(lot.Increment, bestBid, path.Hop(0).BaseUnit())

	for _, q := range []string{"1", "999", "1000", "1500", "2990.5", "5000"} {
		requested := amount(t, q, 6)
		forQuote := mustSettle(t, Estimate(path, Params{Amount: requested, Anchor: domain.AnchorReceive, SlippageBips: 100}))
		back := mustSettle(t, Estimate(path, Params{Amount: forQuote.SpendSlippaged, Anchor: domain.AnchorPay, SlippageBips: 100}))
		floor := new(uint256.Int)
		if requested.Gt(slack) {
			floor.Sub(requested, slack)
		}
		if back.AmountOut.Lt(floor) {
			t.Errorf("quote %s: round trip receive %s below %s", q, back.AmountOut, floor)
		}
	}
}

func TestBuyExactBase(t *testing.T) {
	s := mustSettle(t, Estimate(strkPath(t, false), Params{
		Amount:         amount(t, "20", 18),
		Anchor:         domain.AnchorReceive,
		ExchangeFeePpm: 1000,
		SlippageBips:   100,
	}))
	if s.Command != domain.BuyExactBaseForWhateverQuote || s.Side != domain.SideBuy {
		t.Fatalf("command = %s side = %s", s.Command, s.Side)
	}
	if want := amount(t, "2030", 6); !s.AmountIn.Eq(want) {
		t.Errorf("amountIn = %s, want %s", s.AmountIn, want)
	}
	if want := amount(t, "19.98", 18); !s.ReceivePostFee.Eq(want) {
		t.Errorf("receivePostFee = %s, want %s", s.ReceivePostFee, want)
	}
	if want := amount(t, "2050.3", 6); !s.SpendSlippaged.Eq(want) {
		t.Errorf("spendSlippaged = %s, want %s", s.SpendSlippaged, want)
	}
	if s.NumTrades != 2 || s.PriceImpactBips != 99 {
		t.Errorf("trades = %d impact = %d", s.NumTrades, s.PriceImpactBips)
	}
	if s.SpendAsset != "AUSDC" || s.ReceiveAsset != "STRK" {
		t.Errorf("assets %s -> %s", s.SpendAsset, s.ReceiveAsset)
	}
}

func TestBuyForExactQuote(t *testing.T) {
	s := mustSettle(t, Estimate(strkPath(t, false), Params{
		Amount: amount(t, "1010", 6),
		Anchor: domain.AnchorPay,
	}))
	if s.Command != domain.BuyWhateverBaseForExactQuote {
		t.Fatalf("command = %s", s.Command)
	}
	// 10 STRK less the 0.04% haircut, floored to the lot
	if want := amount(t, "9.99", 18); !s.AmountOut.Eq(want) {
		t.Errorf("amountOut = %s, want %s", s.AmountOut, want)
	}
	if want := amount(t, "1010", 6); !s.AmountIn.Eq(want) {
		t.Errorf("amountIn = %s, want %s", s.AmountIn, want)
	}
	if !s.MinReceiveAmount.Eq(s.AmountOut) {
		t.Errorf("minReceive = %s with no slippage or fee", s.MinReceiveAmount)
	}
}

func TestNoViableSettlement(t *testing.T) {
	emptyHop := makeHop(t, strkUSDC, true, 18, 6, book{asks: strkBook.asks})
	tests := []struct {
		name   string
		path   liquidity.Path
		params Params
		reason domain.NoViableReason
	}{
		{"empty side", liquidity.NewDirectPath(emptyHop), Params{Amount: amount(t, "1", 18)}, domain.ReasonEmptyBook},
		{"zero amount", strkPath(t, true), Params{Amount: u(0)}, domain.ReasonZeroTradable},
		{"below lot", strkPath(t, true), Params{Amount: u(1_000)}, domain.ReasonZeroTradable},
		{"below lot buying", strkPath(t, false), Params{Amount: u(1_000), Anchor: domain.AnchorReceive}, domain.ReasonZeroTradable},
		{"dust quote", strkPath(t, false), Params{Amount: u(1), Anchor: domain.AnchorPay}, domain.ReasonZeroTradable},
		{"fee eats everything", strkPath(t, true), Params{Amount: amount(t, "1", 18), ExchangeFeePpm: FeeScale}, domain.ReasonZeroAfterFee},
		{"nil path", nil, Params{Amount: u(1)}, domain.ReasonInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := Estimate(tt.path, tt.params)
			if est.Viable() {
				t.Fatalf("expected no viable settlement, got %+v", est)
			}
			nv, ok := est.(domain.NoViableSettlement)
			if !ok {
				t.Fatalf("unexpected estimate type %T", est)
			}
			if nv.Reason != tt.reason {
				t.Errorf("reason = %s, want %s", nv.Reason, tt.reason)
			}
		})
	}
}

func BenchmarkEstimateSellExactBase(b *testing.B) {
	path := strkPath(b, true)
	p := Params{Amount: amount(b, "42", 18), Anchor: domain.AnchorPay, ExchangeFeePpm: 1000, SlippageBips: 100}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Estimate(path, p)
	}
}
