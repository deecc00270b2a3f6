package settlement

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/sor-engine/internal/domain"
	"github.com/hxuan190/sor-engine/internal/services/liquidity"
)

// Estimate computes the settlement of a whole path. Single-hop paths are
// estimated directly. Longer paths are chained hop by hop in the direction
// of the anchor: fees are charged on the last hop only, slippage on every
// hop. The first hop that yields no viable settlement ends the chain and
// its sentinel is returned as is.
func Estimate(path liquidity.Path, params Params) domain.Estimate {
	if path == nil || path.HopCount() == 0 {
		return domain.NoViableSettlement{Reason: domain.ReasonInvalidPath}
	}
	if path.HopCount() == 1 {
		return EstimateHop(path, params)
	}
	n := path.HopCount()
	for i := 0; i+1 < n; i++ {
		if path.ReceiveAsset(i) != path.SpendAsset(i+1) {
			return domain.NoViableSettlement{Reason: domain.ReasonInvalidPath, Hop: i + 1}
		}
	}

	hopParams := func(i int, amount *uint256.Int) Params {
		p := Params{Amount: amount, Anchor: params.Anchor, SlippageBips: params.SlippageBips}
		if i == n-1 {
			p.ExchangeFeePpm = params.ExchangeFeePpm
			p.RouterFeePpm = params.RouterFeePpm
		}
		return p
	}

	subs := make([]*domain.Settlement, n)
	amount := params.Amount
	if params.Anchor == domain.AnchorPay {
		for i := 0; i < n; i++ {
			s, stop := step(path, i, hopParams(i, amount))
			if stop != nil {
				return stop
			}
			subs[i] = s
			amount = s.AmountOut
		}
	} else {
		for i := n - 1; i >= 0; i-- {
			s, stop := step(path, i, hopParams(i, amount))
			if stop != nil {
				return stop
			}
			subs[i] = s
			amount = s.AmountIn
		}
	}
	return aggregate(path, subs)
}

func step(path liquidity.Path, i int, params Params) (*domain.Settlement, domain.Estimate) {
	est := EstimateHop(path.Slice(i), params)
	s, ok := domain.AsSettlement(est)
	if !ok {
		if nv, isNV := est.(domain.NoViableSettlement); isNV {
			nv.Hop = i
			return nil, nv
		}
		return nil, est
	}
	return s, nil
}

func aggregate(path liquidity.Path, subs []*domain.Settlement) *domain.Settlement {
	first, last := subs[0], subs[len(subs)-1]
	impacts := make([]int64, len(subs))
	trades := 0
	for i, s := range subs {
		impacts[i] = s.PriceImpactBips
		trades += s.NumTrades
	}
	n := path.HopCount()
	return &domain.Settlement{
		Command:      first.Command,
		Side:         first.Side,
		Pair:         path.Pair(),
		SpendAsset:   path.SpendAsset(0),
		ReceiveAsset: path.ReceiveAsset(n - 1),
		NumTrades:    trades,
		AmountIn:     first.AmountIn.Clone(),
		AmountOut:    last.AmountOut.Clone(),
		Rate:         Rate(first.AmountIn, last.AmountOut, path.SpendDecimals(0), path.ReceiveDecimals(n-1)),
		// per-hop protection prices live in the sub-settlements
		ProtectionPrice:  new(uint256.Int),
		ReceivePostFee:   last.ReceivePostFee.Clone(),
		MinReceiveAmount: last.MinReceiveAmount.Clone(),
		SpendSlippaged:   first.SpendSlippaged.Clone(),
		ReceiveSlippaged: last.ReceiveSlippaged.Clone(),
		PriceImpactBips:  ComposeImpactBips(impacts),
		Quantity:         first.Quantity,
		SubSettlements:   subs,
	}
}
