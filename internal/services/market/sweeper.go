package market

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hxuan190/sor-engine/internal/domain"
)

var ErrSweepInProgress = errors.New("snapshot sweep already running")

const (
	DefaultLevels      = 10
	defaultConcurrency = 4
)

type SweepResult struct {
	Updated  int
	Removed  int
	Failed   map[domain.TradedPair]error
	Duration time.Duration
	// PersistErr is set when fresh snapshots could not be stored.
	PersistErr error
}

// Sweeper keeps the snapshot map and the routing graph in step with the
// exchange. At most one full sweep runs at a time.
type Sweeper struct {
	registry    *Registry
	source      SnapshotSource
	graph       GraphUpdater
	store       SnapshotStore
	snapshots   *ShardedSnapshotMap
	levels      int
	concurrency int

	running atomic.Bool
	sweeps  atomic.Uint64
}

type SweeperOption func(*Sweeper)

func WithLevels(levels int) SweeperOption {
	return func(s *Sweeper) {
		if levels > 0 {
			s.levels = levels
		}
	}
}

func WithConcurrency(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithStore enables persistence of every fresh snapshot.
func WithStore(store SnapshotStore) SweeperOption {
	return func(s *Sweeper) { s.store = store }
}

func NewSweeper(registry *Registry, source SnapshotSource, graph GraphUpdater, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		registry:    registry,
		source:      source,
		graph:       graph,
		snapshots:   NewShardedSnapshotMap(),
		levels:      DefaultLevels,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sweeper) Snapshot(pair domain.TradedPair) (*domain.Snapshot, bool) {
	return s.snapshots.Get(pair)
}

func (s *Sweeper) Snapshots() *ShardedSnapshotMap {
	return s.snapshots
}

func (s *Sweeper) SweepCount() uint64 {
	return s.sweeps.Load()
}

func (s *Sweeper) Running() bool {
	return s.running.Load()
}

// RefreshAll fetches every market. A market whose fetch fails is withdrawn
// from routing until a later sweep succeeds.
func (s *Sweeper) RefreshAll(ctx context.Context) (SweepResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return SweepResult{}, ErrSweepInProgress
	}
	defer s.running.Store(false)

	start := time.Now()
	tickers := s.registry.Tickers()
	snaps := make([]*domain.Snapshot, len(tickers))
	errs := make([]error, len(tickers))

	// fetch errors are per market and must not cancel the others
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, t := range tickers {
		g.Go(func() error {
			snaps[i], errs[i] = s.fetch(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return SweepResult{Duration: time.Since(start)}, err
	}

	res := SweepResult{Failed: make(map[domain.TradedPair]error)}
	fresh := make([]*domain.Snapshot, 0, len(tickers))
	for i, t := range tickers {
		if errs[i] != nil {
			res.Failed[t.Pair] = errs[i]
			if err := s.install(t.Pair, nil); err != nil {
				res.Failed[t.Pair] = errors.Join(errs[i], err)
			}
			res.Removed++
			continue
		}
		if err := s.install(t.Pair, snaps[i]); err != nil {
			res.Failed[t.Pair] = err
			continue
		}
		fresh = append(fresh, snaps[i])
		res.Updated++
	}
	if s.store != nil && len(fresh) > 0 {
		res.PersistErr = s.store.SaveSnapshots(fresh)
	}
	s.sweeps.Add(1)
	res.Duration = time.Since(start)
	return res, nil
}

// Refresh fetches the given markets in parallel and installs them only if
// every fetch succeeded. Snapshots are returned in the order of pairs.
func (s *Sweeper) Refresh(ctx context.Context, pairs []domain.TradedPair) ([]*domain.Snapshot, error) {
	tickers := make([]domain.TickerSpec, len(pairs))
	for i, p := range pairs {
		t, ok := s.registry.Ticker(p)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownMarket, p)
		}
		tickers[i] = t
	}

	snaps := make([]*domain.Snapshot, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tickers {
		g.Go(func() error {
			snap, err := s.fetch(gctx, t)
			if err != nil {
				return fmt.Errorf("refresh %s: %w", t.Pair, err)
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, t := range tickers {
		if err := s.install(t.Pair, snaps[i]); err != nil {
			return nil, err
		}
	}
	return snaps, nil
}

// WarmStart installs persisted snapshots of known markets. Returns the
// number installed.
func (s *Sweeper) WarmStart() (int, error) {
	if s.store == nil {
		return 0, nil
	}
	snaps, err := s.store.LoadSnapshots()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, snap := range snaps {
		t, ok := s.registry.Ticker(snap.Pair)
		if !ok || t.Pair != snap.Pair {
			continue
		}
		if err := s.install(snap.Pair, snap); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Sweeper) fetch(ctx context.Context, t domain.TickerSpec) (*domain.Snapshot, error) {
	snap, err := s.source.GetSnapshot(ctx, t, s.levels)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, domain.ErrSnapshotUnavailable
	}
	if snap.Pair != t.Pair {
		cp := *snap
		cp.Pair = t.Pair
		snap = &cp
	}
	return snap, nil
}

func (s *Sweeper) install(pair domain.TradedPair, snap *domain.Snapshot) error {
	if snap == nil {
		s.snapshots.Delete(pair)
	} else {
		s.snapshots.Set(pair, snap)
	}
	if s.graph == nil {
		return nil
	}
	return s.graph.UpdateSnapshot(pair, snap)
}
