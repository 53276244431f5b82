// Package exit is the outbox of built rounds awaiting delivery to the
// audit topic. Entries live in pebble keyed by round sequence and move
// NEW -> SENT -> ACKED, or to FAILED once retries run out.
package exit

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrNotFound      = errors.New("outbox entry not found")
	ErrInvalidRecord = errors.New("invalid outbox record")
)

// -------------------- Record --------------------

type Record struct {
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// binary encoding: [state:1][retries:4][lastAttempt:8][payload...]
const recordHeader = 1 + 4 + 8

func encodeRecord(r Record) []byte {
	buf := make([]byte, recordHeader+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHeader:], r.Payload)
	return buf
}

// decodeRecord copies b; pebble values are only valid until the
// iterator moves.
func decodeRecord(b []byte) (Record, error) {
	if len(b) < recordHeader {
		return Record{}, ErrInvalidRecord
	}
	return Record{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     bytes.Clone(b[recordHeader:]),
	}, nil
}

// -------------------- Outbox --------------------

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// PutNew stores a freshly built round for delivery.
func (o *Outbox) PutNew(seq uint64, payload []byte) error {
	return o.db.Set(keyFor(seq), encodeRecord(Record{State: StateNew, Payload: payload}), pebble.Sync)
}

// UpdateState moves an entry to state, keeping its payload.
func (o *Outbox) UpdateState(seq uint64, state State, retries uint32) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = time.Now().UnixNano()
	return o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

func (o *Outbox) MarkSent(seq uint64, retries uint32) error {
	return o.UpdateState(seq, StateSent, retries)
}

func (o *Outbox) MarkAcked(seq uint64) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	return o.UpdateState(seq, StateAcked, rec.Retries)
}

func (o *Outbox) MarkFailed(seq uint64, retries uint32) error {
	return o.UpdateState(seq, StateFailed, retries)
}

// Delete removes an entry, normally once ACKED.
func (o *Outbox) Delete(seq uint64) error {
	return o.db.Delete(keyFor(seq), pebble.Sync)
}

func (o *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, fmt.Errorf("%w: %d", ErrNotFound, seq)
	}
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()

	return decodeRecord(val)
}

// -------------------- Scan --------------------

// ScanByState calls fn for every entry in state, in sequence order.
func (o *Outbox) ScanByState(state State, fn func(seq uint64, rec Record) error) error {
	return o.scan(func(seq uint64, rec Record) error {
		if rec.State != state {
			return nil
		}
		return fn(seq, rec)
	})
}

// ScanPending visits entries not yet acknowledged or failed.
func (o *Outbox) ScanPending(fn func(seq uint64, rec Record) error) error {
	return o.scan(func(seq uint64, rec Record) error {
		if rec.State != StateNew && rec.State != StateSent {
			return nil
		}
		return fn(seq, rec)
	})
}

func (o *Outbox) scan(fn func(seq uint64, rec Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		if err := fn(seq, rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

const keyPrefix = "round/"

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &seq)
	return seq, err
}
