package router

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/hxuan190/sor-engine/internal/domain"
)

// DefaultMaxHops bounds path length when the graph is built with maxHops <= 0.
const DefaultMaxHops = 4

// CostModel defines how path values are accumulated and compared.
type CostModel[E any, V any] interface {
	Zero() V
	Combine(acc V, edge *E) V
	// BetterThan reports whether a should replace the current best b.
	BetterThan(a, b V) bool
}

// Filter restricts which assets a path may traverse.
type Filter struct {
	// Exclude removes assets from expansion. The source is always allowed.
	Exclude []domain.Asset
	// IncludeOnly, when set, restricts expansion to these assets plus the
	// source and the requested targets.
	IncludeOnly []domain.Asset
}

type Result[E any, V any] struct {
	Value V
	Path  []domain.Asset
	// Edges are the directed edges along Path as loaded for this result.
	Edges []*E
}

// BestValueGraph is a complete directed graph over a fixed asset set. Each
// directed edge is an atomic pointer: updates are last-writer-wins per
// edge and never block readers. Path queries are cached per
// (source, target) together with the filters that produced them.
//
// Search is breadth-first with a visited set, so a returned path always has
// the fewest hops among reachable targets; among equal-hop alternatives the
// first discovered wins even if the cost model would prefer another.
type BestValueGraph[E any, V any] struct {
	registry *TokenRegistry
	cost     CostModel[E, V]
	maxHops  int

	edges [][]atomic.Pointer[E]
	cache *pathCache
	arena sync.Pool
}

func NewBestValueGraph[E any, V any](assets []domain.Asset, cost CostModel[E, V], maxHops int) *BestValueGraph[E, V] {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	// search depth is tracked in a uint8
	maxHops = min(maxHops, math.MaxUint8-1)
	registry := NewTokenRegistry(assets)
	n := registry.Size()
	g := &BestValueGraph[E, V]{
		registry: registry,
		cost:     cost,
		maxHops:  maxHops,
		edges:    make([][]atomic.Pointer[E], n),
		cache:    newPathCache(),
	}
	for i := range g.edges {
		g.edges[i] = make([]atomic.Pointer[E], n)
	}
	g.arena.New = func() any { return newBFSArena(n) }
	return g
}

func (g *BestValueGraph[E, V]) Registry() *TokenRegistry {
	return g.registry
}

func (g *BestValueGraph[E, V]) MaxHops() int {
	return g.maxHops
}

// UpdateEdge replaces both directed edges between a and b. A nil edge marks
// that direction as having no liquidity.
func (g *BestValueGraph[E, V]) UpdateEdge(a, b domain.Asset, forward, backward *E) error {
	ia, ok := g.registry.GetID(a)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownAsset, a)
	}
	ib, ok := g.registry.GetID(b)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownAsset, b)
	}
	if ia == ib {
		return domain.ErrSameAsset
	}
	g.edges[ia][ib].Store(forward)
	g.edges[ib][ia].Store(backward)
	return nil
}

// Edge returns the current directed edge from a to b, nil when absent.
func (g *BestValueGraph[E, V]) Edge(a, b domain.Asset) *E {
	ia, okA := g.registry.GetID(a)
	ib, okB := g.registry.GetID(b)
	if !okA || !okB {
		return nil
	}
	return g.edges[ia][ib].Load()
}

// InvalidateCache drops every cached path.
func (g *BestValueGraph[E, V]) InvalidateCache() {
	g.cache.clear()
}

// FindPath returns the best path from source to any of targets. initialBest
// is the value a path must beat to be accepted.
func (g *BestValueGraph[E, V]) FindPath(initialBest V, source domain.Asset, targets []domain.Asset, filter Filter) (*Result[E, V], error) {
	src, ok := g.registry.GetID(source)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAsset, source)
	}
	targetSet := g.registry.toSet(targets)
	if len(targetSet) == 0 {
		return nil, fmt.Errorf("%w: no known target in %v", domain.ErrUnknownAsset, targets)
	}

	exclude := g.registry.toSet(filter.Exclude)
	delete(exclude, src)
	// An include list restricts the search even when none of its assets
	// are known, leaving only the direct source-to-target hop.
	var includeOnly idSet
	if len(filter.IncludeOnly) > 0 {
		includeOnly = g.registry.toSet(filter.IncludeOnly)
		for id := range targetSet {
			includeOnly[id] = struct{}{}
		}
		includeOnly[src] = struct{}{}
	}

	for _, t := range targets {
		dst, ok := g.registry.GetID(t)
		if !ok {
			continue
		}
		nodes, ok := g.cache.get(cacheKey{src, dst}, exclude, includeOnly)
		if !ok || !allowed(nodes, exclude, includeOnly) {
			continue
		}
		if res, ok := g.evaluate(nodes); ok {
			return res, nil
		}
	}

	nodes := g.search(initialBest, src, targetSet, exclude, includeOnly)
	if nodes == nil {
		return nil, domain.ErrNoPath
	}
	res, ok := g.evaluate(nodes)
	if !ok {
		return nil, domain.ErrNoPath
	}
	g.cache.put(cacheKey{src, nodes[len(nodes)-1]}, nodes, exclude, includeOnly)
	return res, nil
}

func allowed(nodes []TokenID, exclude, includeOnly idSet) bool {
	for _, id := range nodes {
		if exclude.has(id) {
			return false
		}
		if len(includeOnly) > 0 && !includeOnly.has(id) {
			return false
		}
	}
	return true
}

// evaluate recomputes a path's value from the current edges. It fails when
// any edge along the path has vanished.
func (g *BestValueGraph[E, V]) evaluate(nodes []TokenID) (*Result[E, V], bool) {
	value := g.cost.Zero()
	edges := make([]*E, 0, len(nodes)-1)
	for i := 0; i+1 < len(nodes); i++ {
		e := g.edges[nodes[i]][nodes[i+1]].Load()
		if e == nil {
			return nil, false
		}
		edges = append(edges, e)
		value = g.cost.Combine(value, e)
	}
	path := make([]domain.Asset, len(nodes))
	for i, id := range nodes {
		path[i] = g.registry.GetAsset(id)
	}
	return &Result[E, V]{Value: value, Path: path, Edges: edges}, true
}

// search runs the visited-set BFS. Expansion stops at paths of maxHops+1
// nodes; targets are scored on arrival and never expanded.
func (g *BestValueGraph[E, V]) search(initialBest V, src TokenID, targets, exclude, includeOnly idSet) []TokenID {
	arena := g.arena.Get().(*bfsArena)
	defer func() {
		arena.reset()
		g.arena.Put(arena)
	}()

	arena.markVisited(src, -1, 0)
	arena.queue = append(arena.queue, src)

	best := initialBest
	var bestNodes []TokenID
	for head := 0; head < len(arena.queue); head++ {
		node := arena.queue[head]
		if targets.has(node) {
			nodes := arena.reconstructPath(node)
			value, ok := g.value(nodes)
			if ok && g.cost.BetterThan(value, best) {
				best = value
				bestNodes = nodes
			}
			continue
		}
		if int(arena.depth[node])+1 >= g.maxHops+1 {
			continue
		}
		row := g.edges[node]
		for j := range row {
			next := TokenID(j)
			if arena.isVisited(next) || exclude.has(next) {
				continue
			}
			if len(includeOnly) > 0 && !includeOnly.has(next) {
				continue
			}
			if row[j].Load() == nil {
				continue
			}
			arena.markVisited(next, int32(node), arena.depth[node]+1)
			arena.queue = append(arena.queue, next)
		}
	}
	return bestNodes
}

func (g *BestValueGraph[E, V]) value(nodes []TokenID) (V, bool) {
	value := g.cost.Zero()
	for i := 0; i+1 < len(nodes); i++ {
		e := g.edges[nodes[i]][nodes[i+1]].Load()
		if e == nil {
			return value, false
		}
		value = g.cost.Combine(value, e)
	}
	return value, true
}

// bfsArena is a pooled scratch space for one search. Visited tracking is
// generation based so reset is O(1).
type bfsArena struct {
	gen     []uint32
	parent  []int32
	depth   []uint8
	current uint32
	queue   []TokenID
}

func newBFSArena(n int) *bfsArena {
	return &bfsArena{
		gen:     make([]uint32, n),
		parent:  make([]int32, n),
		depth:   make([]uint8, n),
		current: 1,
		queue:   make([]TokenID, 0, n),
	}
}

func (a *bfsArena) reset() {
	a.current++
	if a.current == 0 {
		clear(a.gen)
		a.current = 1
	}
	a.queue = a.queue[:0]
}

func (a *bfsArena) isVisited(id TokenID) bool {
	return a.gen[id] == a.current
}

func (a *bfsArena) markVisited(id TokenID, parent int32, depth uint8) {
	a.gen[id] = a.current
	a.parent[id] = parent
	a.depth[id] = depth
}

// reconstructPath walks parents back to the root. The returned slice is
// freshly allocated and safe to keep.
func (a *bfsArena) reconstructPath(end TokenID) []TokenID {
	n := int(a.depth[end]) + 1
	path := make([]TokenID, n)
	id := end
	for i := n - 1; i >= 0; i-- {
		path[i] = id
		if p := a.parent[id]; p >= 0 {
			id = TokenID(p)
		}
	}
	return path
}
