package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/sor-engine/internal/aggregator"
	"github.com/hxuan190/sor-engine/internal/aggregator/services/market"
	"github.com/hxuan190/sor-engine/internal/common"
	"github.com/hxuan190/sor-engine/internal/domain"
	"github.com/hxuan190/sor-engine/internal/http/httputil"
	markets "github.com/hxuan190/sor-engine/internal/services/market"
)

type MarketHandler struct {
	aggregatorSvc *aggregator.Service
}

func NewMarketHandler(aggregatorSvc *aggregator.Service) *MarketHandler {
	return &MarketHandler{aggregatorSvc: aggregatorSvc}
}

func (h *MarketHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.listMarkets)
	pub.GET("/stats", h.getStats)
	pub.GET("/assets", h.listAssets)
	pub.GET("/routes", h.listPresetRoutes)
	pub.GET("/book", h.getBook)

	admin.POST("/sweep", h.sweep)
}

func (h *MarketHandler) Root() string {
	return "/markets"
}

// MarketStatsResponse contains aggregated statistics about tracked markets
type MarketStatsResponse struct {
	// Markets defined in the market file
	MarketCount int `json:"marketCount" example:"14"`

	// Markets with a live snapshot in the routing graph
	LiveCount int `json:"liveCount" example:"13"`

	// Completed full sweeps since service start
	SweepCount uint64 `json:"sweepCount" example:"7211"`

	// True while a sweep is in flight
	Sweeping bool `json:"sweeping" example:"false"`
}

// @Summary Market statistics
// @Tags markets
// @Produce json
// @Success 200 {object} MarketStatsResponse
// @Router /api/v1/markets/stats [get]
func (h *MarketHandler) getStats(c *gin.Context) {
	svc := h.aggregatorSvc.MarketService()
	sweeper := svc.Sweeper()
	httputil.HandleSuccess(c, MarketStatsResponse{
		MarketCount: len(svc.Registry().Tickers()),
		LiveCount:   sweeper.Snapshots().Len(),
		SweepCount:  sweeper.SweepCount(),
		Sweeping:    sweeper.Running(),
	})
}

// MarketInfo describes one market and the state of its latest snapshot
type MarketInfo struct {
	Market string `json:"market" example:"STRK/AUSDC"`
	Base   string `json:"base" example:"STRK"`
	Quote  string `json:"quote" example:"AUSDC"`

	// Quantization rules in display units
	MinQty         string `json:"minQty" example:"1"`
	QtyIncrement   string `json:"qtyIncrement" example:"0.01"`
	PriceIncrement string `json:"priceIncrement" example:"0.0001"`

	EcosystemBook bool `json:"ecosystemBook" example:"false"`

	// Whether a snapshot with liquidity is installed for routing
	Live bool `json:"live" example:"true"`

	BestBid   string     `json:"bestBid,omitempty" example:"0.5311"`
	BestAsk   string     `json:"bestAsk,omitempty" example:"0.5314"`
	MsgID     uint64     `json:"msgId,omitempty" example:"184467"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// MarketListResponse contains a paginated list of markets
type MarketListResponse struct {
	Markets []MarketInfo `json:"markets"`

	// Total number of markets across all pages
	Total int `json:"total" example:"14"`

	// Current page number (1-indexed)
	Page int `json:"page" example:"1"`

	// Number of markets per page (max 500)
	Limit int `json:"limit" example:"100"`

	// Total number of pages available
	Pages int `json:"pages" example:"1"`
}

func (h *MarketHandler) marketInfo(d display, spec domain.TickerSpec, sweeper *markets.Sweeper) MarketInfo {
	p := spec.Pair
	info := MarketInfo{
		Market:         p.String(),
		Base:           p.Base.String(),
		Quote:          p.Quote.String(),
		MinQty:         d.amount(spec.MinQty, p.Base),
		QtyIncrement:   d.amount(spec.QtyIncrement, p.Base),
		PriceIncrement: d.price(spec.PriceIncrement, p),
		EcosystemBook:  spec.EcosystemBook,
	}
	snap, ok := sweeper.Snapshot(p)
	if !ok || snap == nil {
		return info
	}
	info.Live = !snap.IsEmpty()
	if bid, ok := snap.BestBid(); ok {
		info.BestBid = d.price(bid, p)
	}
	if ask, ok := snap.BestAsk(); ok {
		info.BestAsk = d.price(ask, p)
	}
	info.MsgID = snap.MsgID
	if !snap.Timestamp.IsZero() {
		ts := snap.Timestamp
		info.UpdatedAt = &ts
	}
	return info
}

// @Summary List markets
// @Description List every configured market with its quantization rules and top of book.
// @Tags markets
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Markets per page, max 500" default(100)
// @Success 200 {object} MarketListResponse
// @Router /api/v1/markets [get]
func (h *MarketHandler) listMarkets(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	svc := h.aggregatorSvc.MarketService()
	tickers := svc.Registry().Tickers()
	total := len(tickers)

	pages := (total + limit - 1) / limit
	offset := (page - 1) * limit
	end := offset + limit
	if offset > total {
		offset = total
	}
	if end > total {
		end = total
	}

	d := display{registry: svc.Registry()}
	list := make([]MarketInfo, 0, end-offset)
	for _, spec := range tickers[offset:end] {
		list = append(list, h.marketInfo(d, spec, svc.Sweeper()))
	}

	httputil.HandleSuccess(c, MarketListResponse{
		Markets: list,
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   pages,
	})
}

// @Summary List assets
// @Tags markets
// @Produce json
// @Success 200 {array} domain.AssetInfo
// @Router /api/v1/markets/assets [get]
func (h *MarketHandler) listAssets(c *gin.Context) {
	httputil.HandleSuccess(c, h.aggregatorSvc.MarketService().Registry().AssetInfos())
}

// @Summary List preset routes
// @Description Curated multi-market routes published for clients.
// @Tags markets
// @Produce json
// @Success 200 {array} markets.PresetRoute
// @Router /api/v1/markets/routes [get]
func (h *MarketHandler) listPresetRoutes(c *gin.Context) {
	routes := h.aggregatorSvc.MarketService().Registry().Routes()
	if routes == nil {
		routes = []markets.PresetRoute{}
	}
	httputil.HandleSuccess(c, routes)
}

// BookRequest selects a market by its canonical pair
type BookRequest struct {
	Base  string `form:"base" binding:"required" example:"STRK"`
	Quote string `form:"quote" binding:"required" example:"AUSDC"`
}

// BookLevel is one aggregated price level in display units
type BookLevel struct {
	Price  string `json:"price" example:"0.5311"`
	Volume string `json:"volume" example:"1250.5"`
	Orders uint32 `json:"orders" example:"3"`
}

// BookResponse is the snapshot the router currently holds for a market
type BookResponse struct {
	Market    string      `json:"market" example:"STRK/AUSDC"`
	MsgID     uint64      `json:"msgId" example:"184467"`
	Timestamp time.Time   `json:"timestamp"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
}

func bookLevels(d display, pair domain.TradedPair, levels []domain.PriceLevel) []BookLevel {
	out := make([]BookLevel, len(levels))
	for i, l := range levels {
		out[i] = BookLevel{
			Price:  d.price(l.Price, pair),
			Volume: d.amount(l.Volume, pair.Base),
			Orders: l.Orders,
		}
	}
	return out
}

// @Summary Get market book
// @Description Latest depth snapshot held for a market. Pairs are accepted in either orientation.
// @Tags markets
// @Produce json
// @Param base query string true "Base asset" example("STRK")
// @Param quote query string true "Quote asset" example("AUSDC")
// @Success 200 {object} BookResponse
// @Failure 404 {object} httputil.Response "Unknown market"
// @Failure 503 {object} httputil.Response "No snapshot held for the market"
// @Router /api/v1/markets/book [get]
func (h *MarketHandler) getBook(c *gin.Context) {
	var req BookRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid query parameters: "+err.Error())
		return
	}

	svc := h.aggregatorSvc.MarketService()
	spec, ok := svc.Registry().Ticker(domain.TradedPair{Base: domain.Asset(req.Base), Quote: domain.Asset(req.Quote)})
	if !ok {
		httputil.HandleError(c, domain.ErrUnknownMarket)
		return
	}
	snap, ok := svc.Sweeper().Snapshot(spec.Pair)
	if !ok || snap == nil {
		httputil.HandleError(c, domain.ErrSnapshotUnavailable)
		return
	}

	d := display{registry: svc.Registry()}
	httputil.HandleSuccess(c, BookResponse{
		Market:    spec.Pair.String(),
		MsgID:     snap.MsgID,
		Timestamp: snap.Timestamp,
		Bids:      bookLevels(d, spec.Pair, snap.Bids),
		Asks:      bookLevels(d, spec.Pair, snap.Asks),
	})
}

// SweepResponse summarises an on-demand sweep
type SweepResponse struct {
	Updated int `json:"updated" example:"13"`
	Removed int `json:"removed" example:"1"`

	// Markets whose fetch failed, with the error
	Failed map[string]string `json:"failed,omitempty"`

	DurationMs int64 `json:"durationMs" example:"84"`
}

// @Summary Sweep markets
// @Description Refresh every market snapshot now instead of waiting for the next scheduled sweep.
// @Tags admin
// @Produce json
// @Success 200 {object} SweepResponse
// @Failure 409 {object} httputil.Response "A sweep is already running"
// @Router /api/v1/admin/markets/sweep [post]
func (h *MarketHandler) sweep(c *gin.Context) {
	res, err := h.aggregatorSvc.MarketService().Sweep(c.Request.Context())
	if errors.Is(err, market.ErrSweepInProgress) {
		httputil.HandleError(c, common.HTTPErrorResourceConflict(err.Error()))
		return
	}
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	resp := SweepResponse{
		Updated:    res.Updated,
		Removed:    res.Removed,
		DurationMs: res.Duration.Milliseconds(),
	}
	if len(res.Failed) > 0 {
		resp.Failed = make(map[string]string, len(res.Failed))
		for p, ferr := range res.Failed {
			resp.Failed[p.String()] = ferr.Error()
		}
	}
	httputil.HandleSuccess(c, resp)
}
