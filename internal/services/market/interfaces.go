package market

import (
	"context"

	"github.com/hxuan190/sor-engine/internal/domain"
)

// SnapshotSource fetches an order book depth snapshot for a market.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, ticker domain.TickerSpec, levels int) (*domain.Snapshot, error)
}

// GraphUpdater receives every snapshot change. A nil snapshot withdraws the
// market from routing.
type GraphUpdater interface {
	UpdateSnapshot(pair domain.TradedPair, snap *domain.Snapshot) error
}

// SnapshotStore persists the latest snapshot per market for warm starts.
type SnapshotStore interface {
	SaveSnapshots(snaps []*domain.Snapshot) error
	LoadSnapshots() ([]*domain.Snapshot, error)
}
