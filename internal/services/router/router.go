package router

import (
	"fmt"

	"github.com/hxuan190/sor-engine/internal/domain"
)

// GraphEdge is one direction of a market in the routing graph.
type GraphEdge struct {
	Pair domain.TradedPair
	// SellSide is true when traversing the edge sells the pair's base into the bids.
	SellSide bool
	Snapshot *domain.Snapshot
}

// SpendAsset is the asset given up when crossing the edge.
func (e *GraphEdge) SpendAsset() domain.Asset {
	if e.SellSide {
		return e.Pair.Base
	}
	return e.Pair.Quote
}

// ReceiveAsset is the asset obtained when crossing the edge.
func (e *GraphEdge) ReceiveAsset() domain.Asset {
	if e.SellSide {
		return e.Pair.Quote
	}
	return e.Pair.Base
}

// Route is a resolved path between two assets.
type Route struct {
	Source domain.Asset
	Target domain.Asset
	// Path lists the assets visited, Source first and Target last.
	Path []domain.Asset
	Hops []GraphEdge
}

func (r *Route) HopCount() int {
	return len(r.Hops)
}

// Pairs returns the markets traversed, in order.
func (r *Route) Pairs() []domain.TradedPair {
	out := make([]domain.TradedPair, len(r.Hops))
	for i, h := range r.Hops {
		out[i] = h.Pair
	}
	return out
}

// SnapshotRouter routes between assets over the latest book snapshots,
// preferring the path with the fewest hops.
type SnapshotRouter struct {
	graph *BestValueGraph[GraphEdge, []*GraphEdge]
}

func NewSnapshotRouter(assets []domain.Asset, maxHops int) *SnapshotRouter {
	return &SnapshotRouter{
		graph: NewBestValueGraph[GraphEdge, []*GraphEdge](assets, FewerHops[GraphEdge]{}, maxHops),
	}
}

func (r *SnapshotRouter) MaxHops() int {
	return r.graph.MaxHops()
}

func (r *SnapshotRouter) Assets() []domain.Asset {
	return r.graph.Registry().Assets()
}

// UpdateSnapshot installs the snapshot for both directions of the pair.
// A nil snapshot removes the market from routing.
func (r *SnapshotRouter) UpdateSnapshot(pair domain.TradedPair, snap *domain.Snapshot) error {
	if snap == nil {
		return r.graph.UpdateEdge(pair.Base, pair.Quote, nil, nil)
	}
	sell := &GraphEdge{Pair: pair, SellSide: true, Snapshot: snap}
	buy := &GraphEdge{Pair: pair, SellSide: false, Snapshot: snap}
	return r.graph.UpdateEdge(pair.Base, pair.Quote, sell, buy)
}

// Snapshot returns the snapshot currently installed for the pair.
func (r *SnapshotRouter) Snapshot(pair domain.TradedPair) (*domain.Snapshot, bool) {
	e := r.graph.Edge(pair.Base, pair.Quote)
	if e == nil {
		return nil, false
	}
	return e.Snapshot, true
}

// FindRoute returns the shortest route from source to target.
func (r *SnapshotRouter) FindRoute(source, target domain.Asset, filter Filter) (*Route, error) {
	if source == target {
		return nil, domain.ErrSameAsset
	}
	res, err := r.graph.FindPath(nil, source, []domain.Asset{target}, filter)
	if err != nil {
		return nil, fmt.Errorf("route %s -> %s: %w", source, target, err)
	}
	if len(res.Value) == 0 {
		return nil, fmt.Errorf("route %s -> %s: %w", source, target, domain.ErrNoPath)
	}
	hops := make([]GraphEdge, len(res.Edges))
	for i, e := range res.Edges {
		hops[i] = *e
	}
	return &Route{
		Source: source,
		Target: target,
		Path:   res.Path,
		Hops:   hops,
	}, nil
}

// InvalidateRoutes drops all cached paths.
func (r *SnapshotRouter) InvalidateRoutes() {
	r.graph.InvalidateCache()
}
