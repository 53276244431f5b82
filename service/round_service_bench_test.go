package service

import (
	"context"
	"testing"

	"poolbook/domain/orderbook"
)

func BenchmarkBuildRound(b *testing.B) {
	f := newFixture(b, nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		for j := 0; j < 256; j++ {
			side := orderbook.Bid
			if j%2 == 1 {
				side = orderbook.Ask
			}
			if _, err := f.svc.Intake(ctx, mkOrder(side, uint64(100+j%17), uint64(1+j%5))); err != nil {
				b.Fatal(err)
			}
		}
		b.StartTimer()

		if _, err := f.svc.BuildRound(ctx, poolA, orderbook.ByPrice); err != nil {
			b.Fatal(err)
		}
	}
}
