package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"poolbook/codec"
	"poolbook/config"
	"poolbook/domain/orderbook"
	"poolbook/domain/pool"
	"poolbook/domain/ray"
	entrywal "poolbook/infra/wal/entry"
)

// -------------------- fakes --------------------

type memStore struct {
	mu     sync.Mutex
	orders []orderbook.Order
}

func (m *memStore) Put(_ context.Context, o orderbook.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, o)
	return nil
}

func (m *memStore) Load(_ context.Context, id pool.ID) (bids, asks []orderbook.Order, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.Pool != id {
			continue
		}
		if o.Side == orderbook.Bid {
			bids = append(bids, o)
		} else {
			asks = append(asks, o)
		}
	}
	return bids, asks, nil
}

func (m *memStore) RemoveOrders(_ context.Context, id pool.ID, seqs []uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.orders[:0]
	var n int64
	for _, o := range m.orders {
		if o.Pool == id && slices.Contains(seqs, o.Meta.ArrivalSeq) {
			n++
			continue
		}
		kept = append(kept, o)
	}
	m.orders = kept
	return n, nil
}

func (m *memStore) LastSeq(context.Context) (uint64, error) { return 0, nil }

// gatedStore holds the first Put until release is closed and reports
// each Load on loaded.
type gatedStore struct {
	*memStore
	once    sync.Once
	held    chan uint64
	release chan struct{}
	loaded  chan struct{}
}

func (g *gatedStore) Put(ctx context.Context, o orderbook.Order) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		g.held <- o.Meta.ArrivalSeq
		<-g.release
	}
	return g.memStore.Put(ctx, o)
}

func (g *gatedStore) Load(ctx context.Context, id pool.ID) (bids, asks []orderbook.Order, err error) {
	bids, asks, err = g.memStore.Load(ctx, id)
	g.loaded <- struct{}{}
	return bids, asks, err
}

type snapshotFunc func(context.Context, pool.ID) (*pool.Snapshot, error)

func (f snapshotFunc) Snapshot(ctx context.Context, id pool.ID) (*pool.Snapshot, error) {
	return f(ctx, id)
}

type memOutbox struct{ seqs []uint64 }

func (o *memOutbox) PutNew(seq uint64, _ []byte) error {
	o.seqs = append(o.seqs, seq)
	return nil
}

type recordingAuction struct {
	rounds []*Round
	err    error
	block  chan struct{}
}

func (a *recordingAuction) Submit(_ context.Context, r *Round, encoded []byte) error {
	if a.block != nil {
		<-a.block
	}
	if _, err := codec.DecodeRound(encoded); err != nil {
		return err
	}
	a.rounds = append(a.rounds, r)
	return a.err
}

type recordingPublisher struct{ msgs []any }

func (p *recordingPublisher) Publish(v any) { p.msgs = append(p.msgs, v) }

// -------------------- helpers --------------------

var poolA = pool.ID{0xaa}

type fixture struct {
	svc     *RoundService
	store   *memStore
	journal *entrywal.WAL
	dir     string
	outbox  *memOutbox
	auction *recordingAuction
	pub     *recordingPublisher
}

func newFixture(t testing.TB, snaps SnapshotSource) *fixture {
	t.Helper()
	dir := t.TempDir()
	j, err := entrywal.Open(entrywal.Config{Dir: dir, SegmentSize: 1 << 20})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = j.Close() })

	if snaps == nil {
		snaps = snapshotFunc(func(context.Context, pool.ID) (*pool.Snapshot, error) { return nil, nil })
	}
	f := &fixture{
		store:   &memStore{},
		journal: j,
		dir:     dir,
		outbox:  &memOutbox{},
		auction: &recordingAuction{},
		pub:     &recordingPublisher{},
	}
	f.svc, err = New(context.Background(), Deps{
		Store:     f.store,
		Snapshots: snaps,
		Journal:   j,
		Outbox:    f.outbox,
		Auction:   f.auction,
		Publisher: f.pub,
	}, map[pool.ID]orderbook.SortStrategy{poolA: orderbook.ByPrice})
	if err != nil {
		t.Fatal(err)
	}
	f.svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	return f
}

func mkOrder(side orderbook.Side, price uint64, qty uint64) orderbook.Order {
	return orderbook.NewOrder(poolA, side, ray.FromUint64(price), uint256.NewInt(qty), orderbook.Meta{})
}

func intake(t testing.TB, svc *RoundService, orders ...orderbook.Order) {
	t.Helper()
	for _, o := range orders {
		if _, err := svc.Intake(context.Background(), o); err != nil {
			t.Fatal(err)
		}
	}
}

// -------------------- tests --------------------

func TestBuildRound(t *testing.T) {
	f := newFixture(t, nil)
	intake(t, f.svc,
		mkOrder(orderbook.Bid, 10, 1),
		mkOrder(orderbook.Ask, 11, 1),
		mkOrder(orderbook.Bid, 12, 2),
		mkOrder(orderbook.Bid, 10, 3),
	)

	r, err := f.svc.BuildRound(context.Background(), poolA, orderbook.DefaultSortStrategy)
	if err != nil {
		t.Fatal(err)
	}

	if !r.Lowest.Equal(ray.FromUint64(10)) || !r.Highest.Equal(ray.FromUint64(12)) {
		t.Fatalf("bounds = [%s, %s]; want [10, 12]", r.Lowest, r.Highest)
	}
	bids := r.Book.Bids()
	if len(bids) != 3 || bids[1].Meta.ArrivalSeq != 1 || bids[2].Meta.ArrivalSeq != 4 {
		t.Fatalf("bids not in price then arrival order: %+v", bids)
	}
	if len(f.outbox.seqs) != 1 || f.outbox.seqs[0] != r.Seq {
		t.Fatalf("outbox = %v", f.outbox.seqs)
	}
	if len(f.auction.rounds) != 1 || len(f.pub.msgs) != 1 {
		t.Fatalf("auction %d rounds, publisher %d msgs", len(f.auction.rounds), len(f.pub.msgs))
	}
	if latest, ok := f.svc.Latest(poolA); !ok || latest != r {
		t.Fatal("Latest does not return the built round")
	}
	sum := r.Summary()
	if sum.BidLevels != 2 || sum.AskLevels != 1 {
		t.Fatalf("levels = %d bid, %d ask", sum.BidLevels, sum.AskLevels)
	}
	if b := sum.BestBid; b == nil || !b.Price.Equal(ray.FromUint64(12)) || b.Quantity != "2" || b.HeadArrival != 3 {
		t.Fatalf("best bid = %+v", sum.BestBid)
	}
	if a := sum.BestAsk; a == nil || !a.Price.Equal(ray.FromUint64(11)) || a.Orders != 1 {
		t.Fatalf("best ask = %+v", sum.BestAsk)
	}

	// Handed-off orders do not rest into the next round.
	r2, err := f.svc.BuildRound(context.Background(), poolA, orderbook.DefaultSortStrategy)
	if err != nil {
		t.Fatal(err)
	}
	if r2.Book.Len() != 0 || !r2.Lowest.IsZero() || !r2.Highest.IsMax() {
		t.Fatalf("second round = %d orders, [%s, %s]", r2.Book.Len(), r2.Lowest, r2.Highest)
	}
	if sum := r2.Summary(); sum.BestBid != nil || sum.BestAsk != nil || sum.BidLevels != 0 {
		t.Fatalf("empty round summary = %+v", sum)
	}
	if r2.Seq <= r.Seq {
		t.Fatalf("round seq %d not after %d", r2.Seq, r.Seq)
	}
}

func TestIntakeUnknownPool(t *testing.T) {
	f := newFixture(t, nil)
	o := mkOrder(orderbook.Bid, 1, 1)
	o.Pool = pool.ID{0x01}
	if _, err := f.svc.Intake(context.Background(), o); !errors.Is(err, ErrUnknownPool) {
		t.Fatalf("err = %v; want ErrUnknownPool", err)
	}
	if _, err := f.svc.BuildRound(context.Background(), o.Pool, orderbook.ByPrice); !errors.Is(err, ErrUnknownPool) {
		t.Fatalf("err = %v; want ErrUnknownPool", err)
	}
}

func TestSnapshotFailureAbortsRound(t *testing.T) {
	boom := errors.New("chain unavailable")
	f := newFixture(t, snapshotFunc(func(context.Context, pool.ID) (*pool.Snapshot, error) {
		return nil, boom
	}))
	intake(t, f.svc, mkOrder(orderbook.Bid, 5, 1))

	_, err := f.svc.BuildRound(context.Background(), poolA, orderbook.ByPrice)
	if !errors.Is(err, ErrRoundAborted) || !errors.Is(err, boom) {
		t.Fatalf("err = %v; want ErrRoundAborted wrapping cause", err)
	}
	if _, ok := f.svc.Latest(poolA); ok {
		t.Fatal("aborted round became latest")
	}
	if len(f.outbox.seqs) != 0 || len(f.auction.rounds) != 0 {
		t.Fatal("aborted round was handed on")
	}
	if bids, _, _ := f.store.Load(context.Background(), poolA); len(bids) != 1 {
		t.Fatal("aborted round consumed resting orders")
	}

	var aborts int
	if _, err := ReplayJournal(f.dir, func(r *codec.Round) error {
		if r.Aborted() && r.Abort == boom.Error() {
			aborts++
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if aborts != 1 {
		t.Fatalf("journaled aborts = %d; want 1", aborts)
	}
}

func TestInvalidConfiguredSnapshotAborts(t *testing.T) {
	snaps, err := NewConfigSnapshots([]config.Pool{{
		ID:           poolA.String(),
		SqrtPriceX96: "79228162514264337593543950336",
		Ranges: []config.Range{
			{Lower: 0, Upper: 100, Liquidity: "1"},
			{Lower: 50, Upper: 150, Liquidity: "1"},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, snaps)

	_, err = f.svc.BuildRound(context.Background(), poolA, orderbook.ByPrice)
	if !errors.Is(err, ErrRoundAborted) || !errors.Is(err, pool.ErrInvalidLiquidityRange) {
		t.Fatalf("err = %v; want aborted round with ErrInvalidLiquidityRange", err)
	}
}

func TestRoundInFlight(t *testing.T) {
	f := newFixture(t, nil)
	f.auction.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.BuildRound(context.Background(), poolA, orderbook.ByPrice)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		f.svc.mu.Lock()
		busy := f.svc.inflight[poolA]
		f.svc.mu.Unlock()
		if busy {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first round never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := f.svc.BuildRound(context.Background(), poolA, orderbook.ByPrice); !errors.Is(err, ErrRoundInFlight) {
		t.Fatalf("err = %v; want ErrRoundInFlight", err)
	}
	close(f.auction.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestHandoffFailureKeepsOrders(t *testing.T) {
	f := newFixture(t, nil)
	f.auction.err = errors.New("broker down")
	intake(t, f.svc, mkOrder(orderbook.Ask, 3, 1))

	r, err := f.svc.BuildRound(context.Background(), poolA, orderbook.ByPrice)
	if !errors.Is(err, ErrHandoff) || r == nil {
		t.Fatalf("round = %v, err = %v; want round with ErrHandoff", r, err)
	}
	if _, asks, _ := f.store.Load(context.Background(), poolA); len(asks) != 1 {
		t.Fatal("orders removed after failed handoff")
	}
	if len(f.outbox.seqs) != 1 {
		t.Fatal("round missing from outbox")
	}
}

func TestLateStoredOrderSurvivesRound(t *testing.T) {
	f := newFixture(t, nil)
	gs := &gatedStore{
		memStore: f.store,
		held:     make(chan uint64, 1),
		release:  make(chan struct{}),
		loaded:   make(chan struct{}, 1),
	}
	f.svc.deps.Store = gs
	f.auction.block = make(chan struct{})
	ctx := context.Background()

	// The first order gets its sequence but is not stored yet.
	slow := make(chan error, 1)
	go func() {
		_, err := f.svc.Intake(ctx, mkOrder(orderbook.Bid, 4, 1))
		slow <- err
	}()
	lateSeq := <-gs.held

	fast, err := f.svc.Intake(ctx, mkOrder(orderbook.Bid, 5, 1))
	if err != nil {
		t.Fatal(err)
	}
	if fast <= lateSeq {
		t.Fatalf("second arrival %d not after %d", fast, lateSeq)
	}

	built := make(chan *Round, 1)
	go func() {
		r, err := f.svc.BuildRound(ctx, poolA, orderbook.ByPrice)
		if err != nil {
			t.Error(err)
		}
		built <- r
	}()
	<-gs.loaded

	close(gs.release)
	if err := <-slow; err != nil {
		t.Fatal(err)
	}
	close(f.auction.block)
	r := <-built
	if r == nil || r.Book.Len() != 1 || r.Book.Bids()[0].Meta.ArrivalSeq != fast {
		t.Fatalf("round = %+v", r)
	}

	bids, _, _ := f.store.Load(ctx, poolA)
	if len(bids) != 1 || bids[0].Meta.ArrivalSeq != lateSeq {
		t.Fatalf("resting bids = %+v; want only arrival %d", bids, lateSeq)
	}
}

func TestRestoreFromJournal(t *testing.T) {
	f := newFixture(t, nil)
	intake(t, f.svc, mkOrder(orderbook.Bid, 7, 1), mkOrder(orderbook.Ask, 9, 1))
	built, err := f.svc.BuildRound(context.Background(), poolA, orderbook.ByPriceThenSize)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.journal.Sync(); err != nil {
		t.Fatal(err)
	}

	other := newFixture(t, nil)
	if err := other.svc.RestoreFromJournal(f.dir); err != nil {
		t.Fatal(err)
	}
	got, ok := other.svc.Latest(poolA)
	if !ok {
		t.Fatal("no round restored")
	}
	if got.ID != built.ID || got.Digest != built.Digest || !got.Book.Equal(built.Book) {
		t.Fatalf("restored round differs: %+v", got)
	}
	if !got.BuiltAt.Equal(built.BuiltAt) {
		t.Fatalf("BuiltAt = %v; want %v", got.BuiltAt, built.BuiltAt)
	}
	if next := other.svc.rounds.Next(); next <= built.Seq {
		t.Fatalf("round sequence resumed at %d; want > %d", next, built.Seq)
	}
}

func TestPoolsSorted(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.pools[pool.ID{0x01}] = orderbook.ByPrice
	f.svc.pools[pool.ID{0xff}] = orderbook.ByPrice
	ids := f.svc.Pools()
	if len(ids) != 3 || ids[0] != (pool.ID{0x01}) || ids[2] != (pool.ID{0xff}) {
		t.Fatalf("Pools() = %v", ids)
	}
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	f := newFixture(t, nil)
	_, err := New(context.Background(), f.svc.deps, map[pool.ID]orderbook.SortStrategy{poolA: 99})
	if err == nil {
		t.Fatal("unknown strategy accepted")
	}
}
