package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing arrival sequences. Orders
// that tie on price keep the order these numbers give them.
type Sequencer struct {
	next atomic.Uint64
}

// New starts after start; pass the last persisted sequence on restart.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Advance moves the sequencer forward to at least v. It never moves
// backwards, so replaying an older source cannot reissue a sequence.
func (s *Sequencer) Advance(v uint64) {
	for {
		cur := s.next.Load()
		if v <= cur || s.next.CompareAndSwap(cur, v) {
			return
		}
	}
}
