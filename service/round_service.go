package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"poolbook/codec"
	"poolbook/domain/orderbook"
	"poolbook/domain/pool"
	"poolbook/infra/sequence"
	entrywal "poolbook/infra/wal/entry"
)

var (
	ErrUnknownPool   = errors.New("unknown pool")
	ErrRoundInFlight = errors.New("round already in flight for pool")
	ErrRoundAborted  = errors.New("round aborted")
	ErrHandoff       = errors.New("auction handoff failed")
)

type Deps struct {
	Store     OrderStore
	Snapshots SnapshotSource
	Journal   Journal
	Outbox    Outbox
	Auction   Auction
	// Publisher is optional.
	Publisher Publisher
}

/*
RoundService is the only write entry point.

Orders enter through Intake and rest in the store. BuildRound turns a
pool's resting orders and AMM snapshot into an immutable book, journals
it, queues it for the audit broadcaster and hands it to the auction.
*/
type RoundService struct {
	deps  Deps
	pools map[pool.ID]orderbook.SortStrategy
	now   func() time.Time

	arrivals *sequence.Sequencer
	rounds   *sequence.Sequencer

	// commit is held from round sequence allocation until the round is
	// journaled and visible in latest, so journal sequences stay ordered.
	commit sync.Mutex

	mu       sync.Mutex
	inflight map[pool.ID]bool
	latest   map[pool.ID]*Round
}

// New wires the service for the given pools and their strategies. The
// arrival and round sequences resume after what the store and journal
// already hold.
func New(ctx context.Context, deps Deps, pools map[pool.ID]orderbook.SortStrategy) (*RoundService, error) {
	for id, s := range pools {
		if !s.Valid() {
			return nil, fmt.Errorf("pool %s: unknown sort strategy %d", id, s)
		}
	}
	last, err := deps.Store.LastSeq(ctx)
	if err != nil {
		return nil, err
	}
	return &RoundService{
		deps:     deps,
		pools:    pools,
		now:      time.Now,
		arrivals: sequence.New(last),
		rounds:   sequence.New(deps.Journal.LastSeq()),
		inflight: make(map[pool.ID]bool),
		latest:   make(map[pool.ID]*Round),
	}, nil
}

// Pools returns the configured pool ids in a stable order.
func (s *RoundService) Pools() []pool.ID {
	ids := make([]pool.ID, 0, len(s.pools))
	for id := range s.pools {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b pool.ID) int { return slices.Compare(a[:], b[:]) })
	return ids
}

// StrategyFor returns the pool's configured strategy.
func (s *RoundService) StrategyFor(id pool.ID) (orderbook.SortStrategy, bool) {
	st, ok := s.pools[id]
	return st, ok
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Intake assigns the next arrival sequence to o and stores it. The
// sequence is the tie-break between equally priced orders.
func (s *RoundService) Intake(ctx context.Context, o orderbook.Order) (uint64, error) {
	if _, ok := s.pools[o.Pool]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPool, o.Pool)
	}
	o.Meta.ArrivalSeq = s.arrivals.Next()
	if err := s.deps.Store.Put(ctx, o); err != nil {
		return 0, fmt.Errorf("store order: %w", err)
	}
	return o.Meta.ArrivalSeq, nil
}

// BuildRound builds the book for id with strategy. At most one round per
// pool runs at a time. A snapshot failure aborts the round and leaves the
// resting orders in place for the next one.
func (s *RoundService) BuildRound(ctx context.Context, id pool.ID, strategy orderbook.SortStrategy) (*Round, error) {
	if _, ok := s.pools[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPool, id)
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("pool %s: unknown sort strategy %d", id, strategy)
	}
	if !s.acquire(id) {
		return nil, fmt.Errorf("%w: %s", ErrRoundInFlight, id)
	}
	defer s.release(id)

	bids, asks, err := s.deps.Store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	amm, err := s.deps.Snapshots.Snapshot(ctx, id)
	if err != nil {
		s.abort(id, err)
		return nil, fmt.Errorf("%w: pool %s: %w", ErrRoundAborted, id, err)
	}

	book := orderbook.New(id, amm, bids, asks, strategy)
	round, payload, err := s.commitRound(book)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Auction.Submit(ctx, round, payload); err != nil {
		return round, fmt.Errorf("%w: round %d: %w", ErrHandoff, round.Seq, err)
	}

	// Orders in a handed-off round do not rest into the next one. Intake
	// assigns sequences before storing, so an order stored after Load may
	// carry a lower sequence than one the round consumed.
	if seqs := arrivals(bids, asks); len(seqs) > 0 {
		if _, err := s.deps.Store.RemoveOrders(ctx, id, seqs); err != nil {
			return round, fmt.Errorf("retire orders of round %d: %w", round.Seq, err)
		}
	}

	slog.Info("ROUND: built",
		"pool", id, "seq", round.Seq, "bids", len(bids), "asks", len(asks),
		"lowest", round.Lowest, "highest", round.Highest, "digest", round.Digest)

	if s.deps.Publisher != nil {
		s.deps.Publisher.Publish(round.Summary())
	}
	return round, nil
}

// commitRound journals the round, queues it for the broadcaster and makes
// it the pool's latest.
func (s *RoundService) commitRound(book *orderbook.OrderBook) (*Round, []byte, error) {
	s.commit.Lock()
	defer s.commit.Unlock()

	round := newRound(s.rounds.Next(), book, s.now())
	payload := codec.EncodeRound(round.envelope())

	if err := s.deps.Journal.Append(entrywal.NewRecord(entrywal.RecordRound, round.Seq, payload)); err != nil {
		return nil, nil, fmt.Errorf("journal round %d: %w", round.Seq, err)
	}
	if err := s.deps.Outbox.PutNew(round.Seq, payload); err != nil {
		return nil, nil, fmt.Errorf("outbox round %d: %w", round.Seq, err)
	}

	s.mu.Lock()
	s.latest[book.ID()] = round
	s.mu.Unlock()
	return round, payload, nil
}

// abort journals a round that produced no book.
func (s *RoundService) abort(id pool.ID, cause error) {
	s.commit.Lock()
	defer s.commit.Unlock()

	seq := s.rounds.Next()
	env := &codec.Round{
		ID:      uuid.New(),
		Seq:     seq,
		Pool:    id,
		BuiltAt: s.now().UnixNano(),
		Abort:   cause.Error(),
	}
	if err := s.deps.Journal.Append(entrywal.NewRecord(entrywal.RecordAbort, seq, codec.EncodeRound(env))); err != nil {
		slog.Error("ROUND: cannot journal abort", "pool", id, "seq", seq, "error", err)
	}
	slog.Warn("ROUND: aborted", "pool", id, "seq", seq, "error", cause)
}

func (s *RoundService) acquire(id pool.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[id] {
		return false
	}
	s.inflight[id] = true
	return true
}

func (s *RoundService) release(id pool.ID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

func arrivals(sides ...[]orderbook.Order) []uint64 {
	var seqs []uint64
	for _, side := range sides {
		for i := range side {
			seqs = append(seqs, side[i].Meta.ArrivalSeq)
		}
	}
	return seqs
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Latest returns the last round built for id.
func (s *RoundService) Latest(id pool.ID) (*Round, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.latest[id]
	return r, ok
}

// Restore installs a journaled round as the latest for its pool, if it
// is newer than what the service holds.
func (s *RoundService) Restore(r *codec.Round) {
	if r.Aborted() {
		s.rounds.Advance(r.Seq)
		return
	}
	round := roundFromRecord(r)
	s.rounds.Advance(round.Seq)

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.latest[round.Pool]; !ok || cur.Seq < round.Seq {
		s.latest[round.Pool] = round
	}
}

//
// ──────────────────────────────────────────────────────────
// Scheduling
// ──────────────────────────────────────────────────────────
//

// Run builds a round for every pool each interval until ctx is done.
func (s *RoundService) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.buildAll(ctx)
		}
	}
}

func (s *RoundService) buildAll(ctx context.Context) {
	for _, id := range s.Pools() {
		if _, err := s.BuildRound(ctx, id, s.pools[id]); err != nil {
			slog.Error("ROUND: build failed", "pool", id, "error", err)
		}
	}
}
