package service

import (
	"context"

	"poolbook/domain/orderbook"
	"poolbook/domain/pool"
	entrywal "poolbook/infra/wal/entry"
)

// OrderStore holds resting orders between rounds.
type OrderStore interface {
	Put(ctx context.Context, o orderbook.Order) error
	Load(ctx context.Context, id pool.ID) (bids, asks []orderbook.Order, err error)
	RemoveOrders(ctx context.Context, id pool.ID, seqs []uint64) (int64, error)
	LastSeq(ctx context.Context) (uint64, error)
}

// SnapshotSource returns the pool's AMM state for a round. A nil
// snapshot with a nil error means the pool has no AMM leg.
type SnapshotSource interface {
	Snapshot(ctx context.Context, id pool.ID) (*pool.Snapshot, error)
}

// Auction receives every built round. How the round is crossed is up to
// the implementation; this package only computes the book and bounds.
type Auction interface {
	Submit(ctx context.Context, r *Round, encoded []byte) error
}

type Journal interface {
	Append(r *entrywal.Record) error
	LastSeq() uint64
	TruncateBefore(seq uint64) error
}

type Outbox interface {
	PutNew(seq uint64, payload []byte) error
}

// Publisher receives round summaries for live display.
type Publisher interface {
	Publish(v any)
}
