package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/bytedance/sonic"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/sor-engine/internal/domain"
)

const (
	SnapshotsBucket = "snapshots"

	DefaultDBPath = "./data/sor-engine.db"
)

type StoredLevel struct {
	Price  string `json:"price"`
	Volume string `json:"volume"`
	Orders uint32 `json:"orders"`
}

type StoredSnapshot struct {
	Base      string        `json:"base"`
	Quote     string        `json:"quote"`
	Bids      []StoredLevel `json:"bids"`
	Asks      []StoredLevel `json:"asks"`
	MsgID     uint64        `json:"msgId"`
	Timestamp int64         `json:"timestamp"`
}

// Storage keeps the latest snapshot per market, keyed by the pair key.
type Storage struct {
	db     *boltdb.BoltDatabase
	dbPath string
}

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db := boltdb.NewBoltDatabase(dbPath)
	if db == nil {
		return nil, fmt.Errorf("failed to open database at %s", dbPath)
	}

	log.Info().Str("path", dbPath).Msg("[snapshotStorage] opened database")

	return &Storage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// MarshalSnapshot encodes a snapshot with amounts as decimal strings.
func MarshalSnapshot(snap *domain.Snapshot) ([]byte, error) {
	return sonic.Marshal(snapshotToStored(snap))
}

func UnmarshalSnapshot(data []byte) (*domain.Snapshot, error) {
	var stored StoredSnapshot
	if err := sonic.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return storedToSnapshot(&stored)
}

func (s *Storage) SaveSnapshot(snap *domain.Snapshot) error {
	data, err := MarshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return s.db.Set(SnapshotsBucket, []byte(snap.Pair.Key()), data)
}

// SaveSnapshots writes all snapshots in one batch.
func (s *Storage) SaveSnapshots(snaps []*domain.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	for _, snap := range snaps {
		data, err := MarshalSnapshot(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot %s: %w", snap.Pair, err)
		}

		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(SnapshotsBucket),
			Key:    []byte(snap.Pair.Key()),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return fmt.Errorf("failed to add snapshot %s to batch: %w", snap.Pair, err)
		}
	}

	if err := batch.Execute(); err != nil {
		log.Error().Err(err).Int("count", len(snaps)).Msg("[snapshotStorage] FAILED to execute batch")
		return err
	}

	log.Debug().Int("count", len(snaps)).Msg("[snapshotStorage] saved snapshot batch")
	return nil
}

func (s *Storage) LoadSnapshots() ([]*domain.Snapshot, error) {
	data, err := s.db.List(SnapshotsBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	snaps := make([]*domain.Snapshot, 0, len(data))
	failed := 0
	for key, value := range data {
		snap, err := UnmarshalSnapshot(value)
		if err != nil {
			log.Error().Str("pair", key).Err(err).Msg("[snapshotStorage] failed to decode snapshot, skipping")
			failed++
			continue
		}
		snaps = append(snaps, snap)
	}

	log.Info().
		Int("total_in_db", len(data)).
		Int("loaded", len(snaps)).
		Int("failed", failed).
		Msg("[snapshotStorage] snapshot loading completed")

	return snaps, nil
}

func (s *Storage) GetSnapshotCount() (int, error) {
	data, err := s.db.List(SnapshotsBucket)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func snapshotToStored(snap *domain.Snapshot) *StoredSnapshot {
	return &StoredSnapshot{
		Base:      string(snap.Pair.Base),
		Quote:     string(snap.Pair.Quote),
		Bids:      levelsToStored(snap.Bids),
		Asks:      levelsToStored(snap.Asks),
		MsgID:     snap.MsgID,
		Timestamp: snap.Timestamp.UnixMilli(),
	}
}

func levelsToStored(levels []domain.PriceLevel) []StoredLevel {
	out := make([]StoredLevel, len(levels))
	for i, l := range levels {
		out[i] = StoredLevel{Price: l.Price.Dec(), Volume: l.Volume.Dec(), Orders: l.Orders}
	}
	return out
}

func storedToSnapshot(stored *StoredSnapshot) (*domain.Snapshot, error) {
	if stored.Base == "" || stored.Quote == "" {
		return nil, fmt.Errorf("missing pair")
	}
	bids, err := storedToLevels(stored.Bids)
	if err != nil {
		return nil, fmt.Errorf("bids: %w", err)
	}
	asks, err := storedToLevels(stored.Asks)
	if err != nil {
		return nil, fmt.Errorf("asks: %w", err)
	}
	return &domain.Snapshot{
		Pair:      domain.TradedPair{Base: domain.Asset(stored.Base), Quote: domain.Asset(stored.Quote)},
		Bids:      bids,
		Asks:      asks,
		MsgID:     stored.MsgID,
		Timestamp: time.UnixMilli(stored.Timestamp),
	}, nil
}

func storedToLevels(stored []StoredLevel) ([]domain.PriceLevel, error) {
	out := make([]domain.PriceLevel, len(stored))
	for i, l := range stored {
		price, err := uint256.FromDecimal(l.Price)
		if err != nil {
			return nil, fmt.Errorf("level %d price: %w", i, err)
		}
		volume, err := uint256.FromDecimal(l.Volume)
		if err != nil {
			return nil, fmt.Errorf("level %d volume: %w", i, err)
		}
		out[i] = domain.PriceLevel{Price: price, Volume: volume, Orders: l.Orders}
	}
	return out, nil
}
