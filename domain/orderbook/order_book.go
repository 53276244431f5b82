package orderbook

import (
	"iter"
	"slices"

	"poolbook/domain/pool"
	"poolbook/domain/ray"
)

// OrderBook is the sorted book for one pool and one matching round.
// It is built once by New and never modified afterwards, so any number of
// goroutines may read it concurrently.
type OrderBook struct {
	id       pool.ID
	amm      *pool.Snapshot
	strategy SortStrategy
	bids     []Order
	asks     []Order
}

// New copies bids and asks, sorts them with strategy and returns the book.
// It cannot fail for a valid strategy; amm may be nil.
func New(id pool.ID, amm *pool.Snapshot, bids, asks []Order, strategy SortStrategy) *OrderBook {
	b := &OrderBook{
		id:       id,
		amm:      amm,
		strategy: strategy,
		bids:     slices.Clone(bids),
		asks:     slices.Clone(asks),
	}
	strategy.SortBids(b.bids)
	strategy.SortAsks(b.asks)
	return b
}

func (b *OrderBook) ID() pool.ID            { return b.id }
func (b *OrderBook) Strategy() SortStrategy { return b.strategy }

// AMM returns the liquidity snapshot carried for the auction, or nil.
func (b *OrderBook) AMM() *pool.Snapshot { return b.amm }

// Bids returns a copy of the sorted bid side.
func (b *OrderBook) Bids() []Order { return slices.Clone(b.bids) }

// Asks returns a copy of the sorted ask side.
func (b *OrderBook) Asks() []Order { return slices.Clone(b.asks) }

func (b *OrderBook) Len() int { return len(b.bids) + len(b.asks) }

// LowestClearingPrice is the minimum price over both sides, or ray.Zero
// for an empty book.
func (b *OrderBook) LowestClearingPrice() ray.Ray {
	return ray.ReduceMin(b.prices())
}

// HighestClearingPrice is the maximum price over both sides, or ray.Max
// for an empty book.
func (b *OrderBook) HighestClearingPrice() ray.Ray {
	return ray.ReduceMax(b.prices())
}

// ClearingBounds returns the feasible interval for a uniform clearing price.
func (b *OrderBook) ClearingBounds() (lowest, highest ray.Ray) {
	return b.LowestClearingPrice(), b.HighestClearingPrice()
}

// prices scans every order on both sides. The bound never relies on the
// sides being price-sorted.
func (b *OrderBook) prices() iter.Seq[ray.Ray] {
	return func(yield func(ray.Ray) bool) {
		for _, side := range [2][]Order{b.bids, b.asks} {
			for i := range side {
				if !yield(side[i].Price) {
					return
				}
			}
		}
	}
}

// BidLevels aggregates the bid side into price levels, best price first.
func (b *OrderBook) BidLevels() []PriceLevel {
	var out []PriceLevel
	levelsOf(b.bids).walkDesc(func(l *PriceLevel) { out = append(out, *l) })
	return out
}

// AskLevels aggregates the ask side into price levels, best price first.
func (b *OrderBook) AskLevels() []PriceLevel {
	var out []PriceLevel
	levelsOf(b.asks).walkAsc(func(l *PriceLevel) { out = append(out, *l) })
	return out
}

func levelsOf(orders []Order) *RBTree {
	t := NewRBTree()
	for _, o := range orders {
		t.GetOrCreate(o.Price).Enqueue(o)
	}
	return t
}

// Equal reports whether two books hold the same pool, strategy, snapshot
// and identically ordered sides.
func (b *OrderBook) Equal(o *OrderBook) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.id == o.id &&
		b.strategy == o.strategy &&
		b.amm.Equal(o.amm) &&
		slices.Equal(b.bids, o.bids) &&
		slices.Equal(b.asks, o.asks)
}
