package domain

import "errors"

var (
	ErrNoPath              = errors.New("no path between assets")
	ErrSameAsset           = errors.New("pay and receive asset are the same")
	ErrUnknownAsset        = errors.New("unknown asset")
	ErrUnknownMarket       = errors.New("unknown market")
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")
	ErrInvalidAmount       = errors.New("invalid amount")
)
