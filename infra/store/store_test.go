package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"

	"poolbook/domain/orderbook"
	"poolbook/domain/pool"
	"poolbook/domain/ray"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mk(id pool.ID, side orderbook.Side, price, seq uint64) orderbook.Order {
	return orderbook.NewOrder(id, side, ray.FromUint64(price), uint256.NewInt(1),
		orderbook.Meta{ID: [32]byte{byte(seq)}, ArrivalSeq: seq})
}

func TestPutLoadArrivalOrder(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	a, b := pool.ID{1}, pool.ID{2}

	in := []orderbook.Order{
		mk(a, orderbook.Bid, 10, 3),
		mk(a, orderbook.Ask, 11, 1),
		mk(b, orderbook.Bid, 9, 2),
		mk(a, orderbook.Bid, 12, 4),
	}
	for _, o := range in {
		if err := s.Put(ctx, o); err != nil {
			t.Fatalf("Put(%d): %v", o.Meta.ArrivalSeq, err)
		}
	}

	bids, asks, err := s.Load(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(bids) != 2 || bids[0] != in[0] || bids[1] != in[3] {
		t.Fatalf("bids = %+v", bids)
	}
	if len(asks) != 1 || asks[0] != in[1] {
		t.Fatalf("asks = %+v", asks)
	}

	last, err := s.LastSeq(ctx)
	if err != nil || last != 4 {
		t.Fatalf("LastSeq = %d, %v; want 4", last, err)
	}
}

func TestPutDuplicate(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	o := mk(pool.ID{1}, orderbook.Bid, 1, 1)
	if err := s.Put(ctx, o); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, o); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v; want ErrDuplicate", err)
	}
}

func TestRemoveOrders(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	id, other := pool.ID{9}, pool.ID{8}
	for seq := uint64(1); seq <= 5; seq++ {
		if err := s.Put(ctx, mk(id, orderbook.Ask, seq, seq)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Put(ctx, mk(other, orderbook.Ask, 1, 6)); err != nil {
		t.Fatal(err)
	}

	// 2 stays even though it sits below the highest removed sequence.
	n, err := s.RemoveOrders(ctx, id, []uint64{1, 3, 4, 6})
	if err != nil || n != 3 {
		t.Fatalf("RemoveOrders = %d, %v; want 3", n, err)
	}
	_, asks, err := s.Load(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(asks) != 2 || asks[0].Meta.ArrivalSeq != 2 || asks[1].Meta.ArrivalSeq != 5 {
		t.Fatalf("remaining asks = %+v", asks)
	}
	if _, asks, _ := s.Load(ctx, other); len(asks) != 1 {
		t.Fatal("removal crossed into another pool")
	}

	if n, err := s.RemoveOrders(ctx, id, nil); err != nil || n != 0 {
		t.Fatalf("RemoveOrders(nil) = %d, %v", n, err)
	}
}

func TestRemoveOrdersBatches(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	id := pool.ID{7}
	seqs := make([]uint64, 0, removeBatch+3)
	for seq := uint64(1); seq <= removeBatch+3; seq++ {
		if err := s.Put(ctx, mk(id, orderbook.Bid, 1, seq)); err != nil {
			t.Fatal(err)
		}
		seqs = append(seqs, seq)
	}
	n, err := s.RemoveOrders(ctx, id, seqs)
	if err != nil || n != int64(len(seqs)) {
		t.Fatalf("RemoveOrders = %d, %v; want %d", n, err, len(seqs))
	}
	if bids, _, _ := s.Load(ctx, id); len(bids) != 0 {
		t.Fatalf("%d bids left", len(bids))
	}
}

func TestEmptyStore(t *testing.T) {
	s := openTest(t)
	last, err := s.LastSeq(context.Background())
	if err != nil || last != 0 {
		t.Fatalf("LastSeq = %d, %v; want 0", last, err)
	}
	bids, asks, err := s.Load(context.Background(), pool.ID{})
	if err != nil || bids != nil || asks != nil {
		t.Fatalf("Load = %v, %v, %v", bids, asks, err)
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Fatalf("rebind = %q", got)
	}
	lite := &Store{driver: DriverSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("sqlite rebind = %q", got)
	}
}

func TestUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", ""); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("err = %v; want ErrUnknownDriver", err)
	}
}
