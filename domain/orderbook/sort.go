package orderbook

import (
	"fmt"
	"slices"
)

// SortStrategy is a closed set of ranking policies. Each policy is a pair
// of pure comparison functions applied with a stable sort, so orders that
// compare equal keep their arrival order.
type SortStrategy uint8

const (
	// ByPrice ranks bids by descending price and asks by ascending price.
	ByPrice SortStrategy = iota
	// ByPriceThenSize ranks by price, then larger quantity first.
	ByPriceThenSize
)

// DefaultSortStrategy is the policy callers pass when they have no reason
// to choose another. It is never applied implicitly.
const DefaultSortStrategy = ByPrice

type sortFuncs struct {
	name string
	bids func(a, b Order) int
	asks func(a, b Order) int
}

var strategies = [...]sortFuncs{
	ByPrice: {
		name: "by-price",
		bids: func(a, b Order) int { return b.Price.Cmp(a.Price) },
		asks: func(a, b Order) int { return a.Price.Cmp(b.Price) },
	},
	ByPriceThenSize: {
		name: "by-price-then-size",
		bids: func(a, b Order) int {
			if c := b.Price.Cmp(a.Price); c != 0 {
				return c
			}
			return b.Quantity.Cmp(&a.Quantity)
		},
		asks: func(a, b Order) int {
			if c := a.Price.Cmp(b.Price); c != 0 {
				return c
			}
			return b.Quantity.Cmp(&a.Quantity)
		},
	},
}

func (s SortStrategy) Valid() bool {
	return int(s) < len(strategies)
}

func (s SortStrategy) String() string {
	if !s.Valid() {
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
	return strategies[s].name
}

// ParseSortStrategy maps a configuration name back to its strategy.
func ParseSortStrategy(name string) (SortStrategy, error) {
	for i, f := range strategies {
		if f.name == name {
			return SortStrategy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown sort strategy %q", name)
}

// SortBids orders bids in place, highest priority first.
func (s SortStrategy) SortBids(orders []Order) {
	slices.SortStableFunc(orders, s.funcs().bids)
}

// SortAsks orders asks in place, highest priority first.
func (s SortStrategy) SortAsks(orders []Order) {
	slices.SortStableFunc(orders, s.funcs().asks)
}

func (s SortStrategy) funcs() sortFuncs {
	if !s.Valid() {
		panic(fmt.Sprintf("orderbook: unknown sort strategy %d", uint8(s)))
	}
	return strategies[s]
}
