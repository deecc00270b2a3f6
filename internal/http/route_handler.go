package http

import (
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/sor-engine/internal/aggregator"
	"github.com/hxuan190/sor-engine/internal/domain"
	"github.com/hxuan190/sor-engine/internal/http/httputil"
	"github.com/hxuan190/sor-engine/internal/services/router"
)

type RouteHandler struct {
	aggregatorSvc *aggregator.Service
}

func NewRouteHandler(aggregatorSvc *aggregator.Service) *RouteHandler {
	return &RouteHandler{aggregatorSvc: aggregatorSvc}
}

func (h *RouteHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getRoute)
}

func (h *RouteHandler) Root() string {
	return "/route"
}

// RouteRequest asks for the shortest market path between two assets
type RouteRequest struct {
	// Asset to spend
	From string `form:"from" binding:"required" example:"STRK"`

	// Asset to receive
	To string `form:"to" binding:"required" example:"AETH"`

	// Comma separated assets the route must not pass through
	Exclude string `form:"exclude" example:"AUSDT"`

	// Comma separated assets the route may pass through, besides from and to
	IncludeOnly string `form:"includeOnly" example:"AUSDC"`
}

// RouteHopInfo is one market crossed by a route
type RouteHopInfo struct {
	// Market in canonical orientation
	Market string `json:"market" example:"STRK/AUSDC"`

	// Order side placed on the market: SELL gives up base, BUY receives it
	Side string `json:"side" enums:"SELL,BUY" example:"SELL"`

	Spend   string `json:"spend" example:"STRK"`
	Receive string `json:"receive" example:"AUSDC"`

	// Top of the consumed book side in quote units, empty when that side is empty
	BestPrice string `json:"bestPrice,omitempty" example:"0.5312"`

	// Exchange message id of the snapshot the route was found on
	SnapshotMsgID uint64 `json:"snapshotMsgId" example:"184467"`
}

// RouteResponse is the resolved path from one asset to another
type RouteResponse struct {
	Source string `json:"source" example:"STRK"`
	Target string `json:"target" example:"AETH"`

	// Assets visited, source first and target last
	Path []string `json:"path" example:"STRK,AUSDC,AETH"`

	HopCount int            `json:"hopCount" example:"2"`
	Hops     []RouteHopInfo `json:"hops"`
}

func (h *RouteHandler) buildRouteResponse(route *router.Route) RouteResponse {
	d := display{registry: h.aggregatorSvc.MarketService().Registry()}

	path := make([]string, len(route.Path))
	for i, a := range route.Path {
		path[i] = a.String()
	}

	hops := make([]RouteHopInfo, len(route.Hops))
	for i := range route.Hops {
		e := &route.Hops[i]
		side := domain.SideBuy
		if e.SellSide {
			side = domain.SideSell
		}
		hop := RouteHopInfo{
			Market:  e.Pair.String(),
			Side:    side.String(),
			Spend:   e.SpendAsset().String(),
			Receive: e.ReceiveAsset().String(),
		}
		if e.Snapshot != nil {
			hop.SnapshotMsgID = e.Snapshot.MsgID
			if levels := e.Snapshot.Side(e.SellSide); len(levels) > 0 {
				hop.BestPrice = d.price(levels[0].Price, e.Pair)
			}
		}
		hops[i] = hop
	}

	return RouteResponse{
		Source:   route.Source.String(),
		Target:   route.Target.String(),
		Path:     path,
		HopCount: route.HopCount(),
		Hops:     hops,
	}
}

// @Summary Find route
// @Description Find the path with the fewest markets between two assets over the latest book snapshots.
// @Description Routes only cross markets whose book side in the direction of travel holds liquidity.
// @Tags route
// @Produce json
// @Param from query string true "Asset to spend" example("STRK")
// @Param to query string true "Asset to receive" example("AETH")
// @Param exclude query string false "Comma separated assets to avoid"
// @Param includeOnly query string false "Comma separated assets allowed as intermediates"
// @Success 200 {object} RouteResponse
// @Failure 400 {object} httputil.Response "Unknown asset or same asset on both sides"
// @Failure 404 {object} httputil.Response "No route between the assets"
// @Router /api/v1/route [get]
func (h *RouteHandler) getRoute(c *gin.Context) {
	var req RouteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid query parameters: "+err.Error())
		return
	}

	filter := router.Filter{
		Exclude:     parseAssets(req.Exclude),
		IncludeOnly: parseAssets(req.IncludeOnly),
	}
	route, err := h.aggregatorSvc.FindRoute(c.Request.Context(), domain.Asset(req.From), domain.Asset(req.To), filter)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.HandleSuccess(c, h.buildRouteResponse(route))
}
