package orderbook

import (
	"math/rand/v2"
	"testing"
)

// ---------------- Construction Benchmarks ---------------- //

func benchOrders(n int) (bids, asks []Order) {
	rng := rand.New(rand.NewPCG(42, 42))
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			bids = append(bids, mk(Bid, 90+rng.Uint64N(10), 1+rng.Uint64N(100), uint64(i)))
		} else {
			asks = append(asks, mk(Ask, 100+rng.Uint64N(10), 1+rng.Uint64N(100), uint64(i)))
		}
	}
	return bids, asks
}

func BenchmarkNew_10k(b *testing.B) {
	bids, asks := benchOrders(10_000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = New(testPool, nil, bids, asks, DefaultSortStrategy)
	}
}

func BenchmarkClearingBounds_10k(b *testing.B) {
	bids, asks := benchOrders(10_000)
	book := New(testPool, nil, bids, asks, DefaultSortStrategy)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lo, hi := book.ClearingBounds()
		if hi.Less(lo) {
			b.Fatal("inverted bounds")
		}
	}
}

func BenchmarkNew_Parallel(b *testing.B) {
	bids, asks := benchOrders(1_000)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = New(testPool, nil, bids, asks, ByPriceThenSize)
		}
	})
}
