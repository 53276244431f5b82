package service

import (
	"time"

	"github.com/google/uuid"

	"poolbook/codec"
	"poolbook/domain/orderbook"
	"poolbook/domain/pool"
	"poolbook/domain/ray"
)

// Round is one built book plus the bounds computed from it.
type Round struct {
	ID      uuid.UUID
	Seq     uint64
	Pool    pool.ID
	BuiltAt time.Time
	Book    *orderbook.OrderBook
	Lowest  ray.Ray
	Highest ray.Ray
	Digest  codec.Digest
}

func newRound(seq uint64, book *orderbook.OrderBook, now time.Time) *Round {
	lo, hi := book.ClearingBounds()
	return &Round{
		ID:      uuid.New(),
		Seq:     seq,
		Pool:    book.ID(),
		BuiltAt: now,
		Book:    book,
		Lowest:  lo,
		Highest: hi,
		Digest:  codec.DigestOf(book),
	}
}

// roundFromRecord restores a journaled round.
func roundFromRecord(r *codec.Round) *Round {
	out := newRound(r.Seq, r.Book, time.Unix(0, r.BuiltAt).UTC())
	out.ID = uuid.UUID(r.ID)
	return out
}

func (r *Round) envelope() *codec.Round {
	return &codec.Round{
		ID:      r.ID,
		Seq:     r.Seq,
		Pool:    r.Pool,
		BuiltAt: r.BuiltAt.UnixNano(),
		Book:    r.Book,
	}
}

// Summary is the JSON view of a round sent to telemetry subscribers.
type Summary struct {
	Round     string  `json:"round"`
	Seq       uint64  `json:"seq"`
	Pool      pool.ID `json:"pool"`
	Strategy  string  `json:"strategy"`
	Bids      int     `json:"bids"`
	Asks      int     `json:"asks"`
	BidLevels int     `json:"bid_levels"`
	AskLevels int     `json:"ask_levels"`
	BestBid   *Level  `json:"best_bid,omitempty"`
	BestAsk   *Level  `json:"best_ask,omitempty"`
	Lowest    ray.Ray `json:"lowest"`
	Highest   ray.Ray `json:"highest"`
	Digest    string  `json:"digest"`
	HasAMM    bool    `json:"has_amm"`
	BuiltAt   int64   `json:"built_at"`
}

// Level is the aggregate of the orders resting at one price.
type Level struct {
	Price       ray.Ray `json:"price"`
	Quantity    string  `json:"quantity"`
	Orders      int     `json:"orders"`
	HeadArrival uint64  `json:"head_arrival"`
}

func (r *Round) Summary() Summary {
	bids, asks := r.Book.BidLevels(), r.Book.AskLevels()
	return Summary{
		Round:     r.ID.String(),
		Seq:       r.Seq,
		Pool:      r.Pool,
		Strategy:  r.Book.Strategy().String(),
		Bids:      len(r.Book.Bids()),
		Asks:      len(r.Book.Asks()),
		BidLevels: len(bids),
		AskLevels: len(asks),
		BestBid:   bestLevel(bids),
		BestAsk:   bestLevel(asks),
		Lowest:    r.Lowest,
		Highest:   r.Highest,
		Digest:    r.Digest.String(),
		HasAMM:    r.Book.AMM() != nil,
		BuiltAt:   r.BuiltAt.UnixMilli(),
	}
}

// bestLevel expects levels ordered best price first.
func bestLevel(levels []orderbook.PriceLevel) *Level {
	if len(levels) == 0 {
		return nil
	}
	l := &levels[0]
	out := &Level{
		Price:    l.Price,
		Quantity: l.TotalQty.Dec(),
		Orders:   l.OrderCount,
	}
	if head, ok := l.Head(); ok {
		out.HeadArrival = head.Meta.ArrivalSeq
	}
	return out
}
