package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"poolbook/domain/orderbook"
	"poolbook/domain/pool"
)

// Round envelope fields.
const (
	roundID      protowire.Number = 1
	roundSeq     protowire.Number = 2
	roundPool    protowire.Number = 3
	roundBuiltAt protowire.Number = 4
	roundBook    protowire.Number = 5
	roundAbort   protowire.Number = 6
)

// Round is the journaled and broadcast form of one round. A round either
// carries a Book or an Abort reason, never both.
type Round struct {
	ID      [16]byte
	Seq     uint64
	Pool    pool.ID
	BuiltAt int64
	Book    *orderbook.OrderBook
	Abort   string
}

func (r *Round) Aborted() bool { return r.Book == nil }

func EncodeRound(r *Round) []byte {
	var data []byte
	data = appendBytes(data, roundID, r.ID[:])
	data = appendVarint(data, roundSeq, r.Seq)
	data = appendBytes(data, roundPool, r.Pool[:])
	data = appendVarint(data, roundBuiltAt, protowire.EncodeZigZag(r.BuiltAt))
	if r.Book != nil {
		data = appendBytes(data, roundBook, EncodeBook(r.Book))
	} else {
		data = appendBytes(data, roundAbort, []byte(r.Abort))
	}
	return data
}

func DecodeRound(data []byte) (*Round, error) {
	r := new(Round)
	err := fields(data, func(f field) error {
		switch f.num {
		case roundID:
			return f.fixed(r.ID[:])
		case roundSeq:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			r.Seq = f.varint
		case roundPool:
			return f.fixed(r.Pool[:])
		case roundBuiltAt:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			r.BuiltAt = protowire.DecodeZigZag(f.varint)
		case roundBook:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			b, err := DecodeBook(f.bytes)
			if err != nil {
				return fmt.Errorf("round book: %w", err)
			}
			r.Book = b
		case roundAbort:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			r.Abort = string(f.bytes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if r.Book != nil && r.Book.ID() != r.Pool {
		return nil, fmt.Errorf("%w: round pool %s carries book for %s", ErrMalformed, r.Pool, r.Book.ID())
	}
	return r, nil
}
