package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"github.com/hxuan190/sor-engine/internal/aggregator"
	"github.com/hxuan190/sor-engine/internal/domain"
	"github.com/hxuan190/sor-engine/internal/http/httputil"
	"github.com/hxuan190/sor-engine/internal/services/router"
)

type QuoteHandler struct {
	aggregatorSvc *aggregator.Service
}

func NewQuoteHandler(aggregatorSvc *aggregator.Service) *QuoteHandler {
	return &QuoteHandler{aggregatorSvc: aggregatorSvc}
}

func (h *QuoteHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getQuote)
}

func (h *QuoteHandler) Root() string {
	return "/quote"
}

// QuoteRequest represents the parameters for requesting a settlement estimate
type QuoteRequest struct {
	// Asset the taker gives up
	Pay string `form:"pay" binding:"required" example:"STRK"`

	// Asset the taker wants
	Receive string `form:"receive" binding:"required" example:"AUSDC"`

	// Display amount of the anchored asset, e.g. "50" or "0.25"
	// Digits beyond the asset precision are truncated
	Amount string `form:"amount" binding:"required" example:"50"`

	// Which side the amount fixes
	// - "pay": spend exactly amount, receive is estimated
	// - "receive": receive exactly amount, spend is estimated
	Anchor string `form:"anchor" binding:"omitempty,oneof=pay receive" enums:"pay,receive" example:"pay"`

	// Slippage tolerance in basis points (1 bip = 0.01%), server default when omitted
	SlippageBips *uint64 `form:"slippageBips" binding:"omitempty,max=10000" example:"100"`

	// Comma separated assets the route must not pass through
	Exclude string `form:"exclude"`

	// Comma separated assets the route may pass through
	IncludeOnly string `form:"includeOnly"`
}

// QuantityInfo is the order-building view of a hop
type QuantityInfo struct {
	// Quantity in base asset units
	BaseQty string `json:"baseQty" example:"50"`

	// Quantity in quote asset units
	QuoteQty string `json:"quoteQty" example:"26.55"`
}

// HopSettlement is the estimate for one market of the route
type HopSettlement struct {
	Market  string `json:"market" example:"STRK/AUSDC"`
	Side    string `json:"side" enums:"SELL,BUY" example:"SELL"`
	Command string `json:"command" example:"SellExactBaseForWhateverQuote"`

	SpendAsset   string `json:"spendAsset" example:"STRK"`
	ReceiveAsset string `json:"receiveAsset" example:"AUSDC"`

	AmountIn  string `json:"amountIn" example:"50"`
	AmountOut string `json:"amountOut" example:"26.55"`

	// Pay per receive
	Rate string `json:"rate" example:"1.8832391713"`

	// Worst price touched on the book, in quote units
	ProtectionPrice string `json:"protectionPrice" example:"0.531"`

	// Protection price widened by the order band and floored to the price tick
	BoundedProtectionPrice string `json:"boundedProtectionPrice" example:"0.4248"`

	MinReceiveAmount string       `json:"minReceiveAmount" example:"26.256"`
	PriceImpactBips  int64        `json:"priceImpactBips" example:"12"`
	NumTrades        int          `json:"numTrades" example:"3"`
	Quantity         QuantityInfo `json:"quantity"`
}

// QuoteResponse contains the settlement estimate with routing information
type QuoteResponse struct {
	// Quote identifier for log correlation
	ID string `json:"id" example:"4c8b0b7e-2a8d-4a52-9b0e-0d8f5f7c1e9a"`

	Pay     string `json:"pay" example:"STRK"`
	Receive string `json:"receive" example:"AUSDC"`
	Anchor  string `json:"anchor" example:"pay"`

	// Requested amount of the anchored asset
	Amount string `json:"amount" example:"50"`

	// False when nothing can be traded; noViableReason tells why
	Viable bool `json:"viable" example:"true"`

	NoViableReason string `json:"noViableReason,omitempty" enums:"empty_book,zero_tradable,below_minimum,zero_after_fee,invalid_path" example:"below_minimum"`

	// Index of the failing hop for multi-hop routes
	NoViableHop *int `json:"noViableHop,omitempty" example:"1"`

	// Complete asset path from pay to receive
	RoutePath []string `json:"routePath" example:"STRK,AUSDC"`
	HopCount  int      `json:"hopCount" example:"1"`

	AmountIn  string `json:"amountIn,omitempty" example:"50"`
	AmountOut string `json:"amountOut,omitempty" example:"26.55"`

	// Raw integer amounts in smallest units
	AmountInRaw  string `json:"amountInRaw,omitempty" example:"50000000000000000000"`
	AmountOutRaw string `json:"amountOutRaw,omitempty" example:"26550000"`

	// Pay per receive, 10 decimal places
	Rate string `json:"rate,omitempty" example:"1.8832391713"`

	ReceivePostFee   string `json:"receivePostFee,omitempty" example:"26.523"`
	MinReceiveAmount string `json:"minReceiveAmount,omitempty" example:"26.256"`
	SpendSlippaged   string `json:"spendSlippaged,omitempty" example:"50.5"`
	ReceiveSlippaged string `json:"receiveSlippaged,omitempty" example:"26.257"`

	// Protection price of the first hop after banding, in that market's quote units
	BoundedProtectionPrice string `json:"boundedProtectionPrice,omitempty" example:"0.4248"`

	PriceImpactBips int64 `json:"priceImpactBips" example:"12"`
	NumTrades       int   `json:"numTrades" example:"3"`

	SlippageBips   uint64 `json:"slippageBips" example:"100"`
	ExchangeFeePpm uint64 `json:"exchangeFeePpm" example:"1000"`
	RouterFeePpm   uint64 `json:"routerFeePpm" example:"0"`

	// Per market breakdown, pay side first
	Hops []HopSettlement `json:"hops,omitempty"`

	// Time of the oldest snapshot the estimate was computed from
	SnapshotAt time.Time `json:"snapshotAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

func parseAnchor(s string) domain.Anchor {
	if s == domain.AnchorReceive.String() {
		return domain.AnchorReceive
	}
	return domain.AnchorPay
}

func priceTick(d display, pair domain.TradedPair) *uint256.Int {
	if spec, ok := d.registry.Ticker(pair); ok {
		return spec.PriceIncrement
	}
	return nil
}

func (h *QuoteHandler) buildHop(d display, s *domain.Settlement) HopSettlement {
	tick := priceTick(d, s.Pair)
	return HopSettlement{
		Market:                 s.Pair.String(),
		Side:                   s.Side.String(),
		Command:                s.Command.String(),
		SpendAsset:             s.SpendAsset.String(),
		ReceiveAsset:           s.ReceiveAsset.String(),
		AmountIn:               d.amount(s.AmountIn, s.SpendAsset),
		AmountOut:              d.amount(s.AmountOut, s.ReceiveAsset),
		Rate:                   s.Rate,
		ProtectionPrice:        d.price(s.ProtectionPrice, s.Pair),
		BoundedProtectionPrice: d.price(s.BoundedProtectionPrice(tick), s.Pair),
		MinReceiveAmount:       d.amount(s.MinReceiveAmount, s.ReceiveAsset),
		PriceImpactBips:        s.PriceImpactBips,
		NumTrades:              s.NumTrades,
		Quantity: QuantityInfo{
			BaseQty:  d.amount(s.Quantity.BaseQty, s.Pair.Base),
			QuoteQty: d.amount(s.Quantity.QuoteQty, s.Pair.Quote),
		},
	}
}

func (h *QuoteHandler) buildQuoteResponse(req *QuoteRequest, res *aggregator.QuoteResult) QuoteResponse {
	d := display{registry: h.aggregatorSvc.MarketService().Registry()}

	routePath := make([]string, len(res.Route.Path))
	for i, a := range res.Route.Path {
		routePath[i] = a.String()
	}

	resp := QuoteResponse{
		ID:             res.ID,
		Pay:            req.Pay,
		Receive:        req.Receive,
		Anchor:         res.Params.Anchor.String(),
		Amount:         req.Amount,
		Viable:         res.Viable(),
		RoutePath:      routePath,
		HopCount:       res.Route.HopCount(),
		SlippageBips:   res.Params.SlippageBips,
		ExchangeFeePpm: res.Params.ExchangeFeePpm,
		RouterFeePpm:   res.Params.RouterFeePpm,
		SnapshotAt:     res.SnapshotAt,
		CreatedAt:      res.CreatedAt,
	}

	if nv := res.NoViable; nv != nil {
		resp.NoViableReason = nv.Reason.String()
		if res.Route.HopCount() > 1 {
			hop := nv.Hop
			resp.NoViableHop = &hop
		}
		return resp
	}

	s := res.Settlement
	first := s.First()
	tick := priceTick(d, first.Pair)

	resp.AmountIn = d.amount(s.AmountIn, s.SpendAsset)
	resp.AmountOut = d.amount(s.AmountOut, s.ReceiveAsset)
	resp.AmountInRaw = rawString(s.AmountIn)
	resp.AmountOutRaw = rawString(s.AmountOut)
	resp.Rate = s.Rate
	resp.ReceivePostFee = d.amount(s.ReceivePostFee, s.ReceiveAsset)
	resp.MinReceiveAmount = d.amount(s.MinReceiveAmount, s.ReceiveAsset)
	resp.SpendSlippaged = d.amount(s.SpendSlippaged, s.SpendAsset)
	resp.ReceiveSlippaged = d.amount(s.ReceiveSlippaged, s.ReceiveAsset)
	resp.BoundedProtectionPrice = d.price(s.BoundedProtectionPrice(tick), first.Pair)
	resp.PriceImpactBips = s.PriceImpactBips
	resp.NumTrades = s.NumTrades

	subs := s.SubSettlements
	if len(subs) == 0 {
		subs = []*domain.Settlement{s}
	}
	resp.Hops = make([]HopSettlement, len(subs))
	for i, sub := range subs {
		resp.Hops[i] = h.buildHop(d, sub)
	}
	return resp
}

// @Summary Get settlement quote
// @Description Estimate what a taker order would settle at, walking the book depth of every market on the route.
// @Description Routes with no direct market go through intermediate assets, up to the configured hop limit.
// @Description
// @Description The quote includes:
// @Description - Amounts for both sides after exchange and router fees
// @Description - Minimum receive and slippage-adjusted amounts
// @Description - Protection price for order building
// @Description - Per-market breakdown for multi-hop routes
// @Description
// @Description **Amount Format:**
// @Description - Display units of the anchored asset, e.g. 1.5 STRK = "1.5"
// @Description
// @Description A quote that cannot be filled (empty book, below the market minimum, zero after fees) is returned
// @Description with viable=false and the reason, not as an error.
// @Tags quote
// @Produce json
// @Param pay query string true "Asset to spend" example("STRK")
// @Param receive query string true "Asset to receive" example("AUSDC")
// @Param amount query string true "Display amount of the anchored asset" example("50")
// @Param anchor query string false "Which side amount fixes" Enums(pay, receive) default(pay)
// @Param slippageBips query int false "Slippage tolerance in basis points" minimum(0) maximum(10000)
// @Param exclude query string false "Comma separated assets to avoid"
// @Param includeOnly query string false "Comma separated assets allowed as intermediates"
// @Success 200 {object} QuoteResponse "Quote, possibly not viable"
// @Failure 400 {object} httputil.Response "Invalid request parameters"
// @Failure 404 {object} httputil.Response "No route found between the assets"
// @Failure 503 {object} httputil.Response "Book snapshot unavailable"
// @Router /api/v1/quote [get]
func (h *QuoteHandler) getQuote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid query parameters: "+err.Error())
		return
	}

	res, err := h.aggregatorSvc.Quote(c.Request.Context(), aggregator.QuoteRequest{
		Pay:          domain.Asset(req.Pay),
		Receive:      domain.Asset(req.Receive),
		Amount:       req.Amount,
		Anchor:       parseAnchor(req.Anchor),
		SlippageBips: req.SlippageBips,
		Filter: router.Filter{
			Exclude:     parseAssets(req.Exclude),
			IncludeOnly: parseAssets(req.IncludeOnly),
		},
	})
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.HandleSuccess(c, h.buildQuoteResponse(&req, res))
}
