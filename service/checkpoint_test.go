package service

import (
	"context"
	"testing"

	"poolbook/domain/orderbook"
	"poolbook/snapshot"
)

func TestCheckpointRestore(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	intake(t, f.svc, mkOrder(orderbook.Bid, 4, 1))
	first, err := f.svc.BuildRound(ctx, poolA, orderbook.ByPrice)
	if err != nil {
		t.Fatal(err)
	}

	ckpt := t.TempDir()
	if err := f.svc.Checkpoint(&snapshot.Writer{Dir: ckpt}); err != nil {
		t.Fatal(err)
	}

	other := newFixture(t, nil)
	if err := other.svc.RestoreFromCheckpoint(ckpt); err != nil {
		t.Fatal(err)
	}
	got, ok := other.svc.Latest(poolA)
	if !ok || got.Digest != first.Digest || got.Seq != first.Seq {
		t.Fatalf("restored %+v; want round %d", got, first.Seq)
	}
	if next := other.svc.rounds.Next(); next <= first.Seq {
		t.Fatalf("round sequence resumed at %d", next)
	}

	// An empty checkpoint directory is not an error.
	if err := newFixture(t, nil).svc.RestoreFromCheckpoint(t.TempDir()); err != nil {
		t.Fatal(err)
	}
}
