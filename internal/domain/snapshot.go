package domain

import (
	"time"

	"github.com/holiman/uint256"
)

// PriceLevel is one aggregated level of an order book side.
// Price is in raw quote units per one whole base token, Volume in raw base units.
type PriceLevel struct {
	Price  *uint256.Int
	Volume *uint256.Int
	Orders uint32
}

// Snapshot is a read-only depth picture of a market. Bids are sorted best
// (highest) first, asks best (lowest) first.
type Snapshot struct {
	Pair      TradedPair
	Bids      []PriceLevel
	Asks      []PriceLevel
	MsgID     uint64
	Timestamp time.Time
}

func (s *Snapshot) BestBid() (*uint256.Int, bool) {
	if s == nil || len(s.Bids) == 0 {
		return nil, false
	}
	return s.Bids[0].Price, true
}

func (s *Snapshot) BestAsk() (*uint256.Int, bool) {
	if s == nil || len(s.Asks) == 0 {
		return nil, false
	}
	return s.Asks[0].Price, true
}

// Side returns the levels a taker consumes: bids when selling base, asks when buying it.
func (s *Snapshot) Side(sellSide bool) []PriceLevel {
	if s == nil {
		return nil
	}
	if sellSide {
		return s.Bids
	}
	return s.Asks
}

func (s *Snapshot) IsEmpty() bool {
	return s == nil || (len(s.Bids) == 0 && len(s.Asks) == 0)
}
