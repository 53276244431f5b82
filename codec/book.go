package codec

import (
	"bytes"
	"fmt"

	"github.com/holiman/uint256"
	"google.golang.org/protobuf/encoding/protowire"

	"poolbook/domain/orderbook"
	"poolbook/domain/pool"
	"poolbook/domain/ray"
)

// Book fields.
const (
	bookPool     protowire.Number = 1
	bookStrategy protowire.Number = 2
	bookAMM      protowire.Number = 3
	bookBids     protowire.Number = 4
	bookAsks     protowire.Number = 5
)

// Order fields.
const (
	orderPool       protowire.Number = 1
	orderSide       protowire.Number = 2
	orderPrice      protowire.Number = 3
	orderQuantity   protowire.Number = 4
	orderID         protowire.Number = 5
	orderArrival    protowire.Number = 6
	orderSigner     protowire.Number = 7
	orderValidBlock protowire.Number = 8
)

// Snapshot and range fields.
const (
	snapSqrtPrice protowire.Number = 1
	snapRanges    protowire.Number = 2

	rangeLower     protowire.Number = 1
	rangeUpper     protowire.Number = 2
	rangeLiquidity protowire.Number = 3
)

// EncodeBook returns the canonical encoding of b: pool id, strategy,
// optional snapshot, then bids and asks in their sorted order.
func EncodeBook(b *orderbook.OrderBook) []byte {
	buf := scratch.Get()
	defer scratch.Put(buf)

	out := appendBook((*buf)[:0], b)
	*buf = out[:0]
	return bytes.Clone(out)
}

// DecodeBook is the inverse of EncodeBook. Sides are restored in their
// encoded order; a snapshot that fails validation is an error.
func DecodeBook(data []byte) (*orderbook.OrderBook, error) {
	var (
		id         pool.ID
		strategy   orderbook.SortStrategy
		amm        *pool.Snapshot
		bids, asks []orderbook.Order
	)

	err := fields(data, func(f field) error {
		switch f.num {
		case bookPool:
			return f.fixed(id[:])
		case bookStrategy:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			strategy = orderbook.SortStrategy(f.varint)
			if !strategy.Valid() || f.varint > 0xff {
				return fmt.Errorf("%w: unknown sort strategy %d", ErrMalformed, f.varint)
			}
		case bookAMM:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			snap, err := decodeSnapshot(f.bytes)
			if err != nil {
				return err
			}
			amm = snap
		case bookBids, bookAsks:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			o, err := DecodeOrder(f.bytes)
			if err != nil {
				return err
			}
			if f.num == bookBids {
				bids = append(bids, o)
			} else {
				asks = append(asks, o)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Re-applying the stable strategy to already sorted sides is the identity.
	return orderbook.New(id, amm, bids, asks, strategy), nil
}

// EncodeOrder returns the canonical encoding of one order.
func EncodeOrder(o orderbook.Order) []byte {
	return appendOrder(nil, &o)
}

func DecodeOrder(data []byte) (orderbook.Order, error) {
	var o orderbook.Order
	err := fields(data, func(f field) error {
		switch f.num {
		case orderPool:
			return f.fixed(o.Pool[:])
		case orderSide:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			if f.varint > uint64(orderbook.Ask) {
				return fmt.Errorf("%w: unknown side %d", ErrMalformed, f.varint)
			}
			o.Side = orderbook.Side(f.varint)
		case orderPrice:
			var price uint256.Int
			if err := f.u256(&price); err != nil {
				return err
			}
			o.Price = ray.New(&price)
		case orderQuantity:
			return f.u256(&o.Quantity)
		case orderID:
			return f.fixed(o.Meta.ID[:])
		case orderArrival:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			o.Meta.ArrivalSeq = f.varint
		case orderSigner:
			return f.fixed(o.Meta.Signer[:])
		case orderValidBlock:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			o.Meta.ValidBlock = f.varint
		}
		return nil
	})
	return o, err
}

func appendBook(data []byte, b *orderbook.OrderBook) []byte {
	id := b.ID()
	data = appendBytes(data, bookPool, id[:])
	data = appendVarint(data, bookStrategy, uint64(b.Strategy()))

	var tmp []byte
	if amm := b.AMM(); amm != nil {
		tmp = appendSnapshot(tmp[:0], amm)
		data = appendBytes(data, bookAMM, tmp)
	}
	for _, o := range b.Bids() {
		tmp = appendOrder(tmp[:0], &o)
		data = appendBytes(data, bookBids, tmp)
	}
	for _, o := range b.Asks() {
		tmp = appendOrder(tmp[:0], &o)
		data = appendBytes(data, bookAsks, tmp)
	}
	return data
}

func appendOrder(data []byte, o *orderbook.Order) []byte {
	price := o.Price.Bytes32()
	data = appendBytes(data, orderPool, o.Pool[:])
	data = appendVarint(data, orderSide, uint64(o.Side))
	data = appendBytes(data, orderPrice, price[:])
	data = appendU256(data, orderQuantity, &o.Quantity)
	data = appendBytes(data, orderID, o.Meta.ID[:])
	data = appendVarint(data, orderArrival, o.Meta.ArrivalSeq)
	data = appendBytes(data, orderSigner, o.Meta.Signer[:])
	data = appendVarint(data, orderValidBlock, o.Meta.ValidBlock)
	return data
}

func appendSnapshot(data []byte, s *pool.Snapshot) []byte {
	data = appendU256(data, snapSqrtPrice, s.SqrtPrice().Int())

	var tmp []byte
	for _, r := range s.Ranges() {
		tmp = tmp[:0]
		tmp = appendVarint(tmp, rangeLower, protowire.EncodeZigZag(int64(r.Lower)))
		tmp = appendVarint(tmp, rangeUpper, protowire.EncodeZigZag(int64(r.Upper)))
		tmp = appendU256(tmp, rangeLiquidity, &r.Liquidity)
		data = appendBytes(data, snapRanges, tmp)
	}
	return data
}

func decodeSnapshot(data []byte) (*pool.Snapshot, error) {
	var (
		sqrt   uint256.Int
		ranges []pool.LiqRange
	)
	err := fields(data, func(f field) error {
		switch f.num {
		case snapSqrtPrice:
			return f.u256(&sqrt)
		case snapRanges:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			r, err := decodeRange(f.bytes)
			if err != nil {
				return err
			}
			ranges = append(ranges, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	snap, err := pool.NewSnapshot(ranges, pool.NewSqrtPriceX96(&sqrt))
	if err != nil {
		return nil, fmt.Errorf("codec: snapshot: %w", err)
	}
	return snap, nil
}

func decodeRange(data []byte) (pool.LiqRange, error) {
	var r pool.LiqRange
	err := fields(data, func(f field) error {
		switch f.num {
		case rangeLower, rangeUpper:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			v := protowire.DecodeZigZag(f.varint)
			if v < int64(pool.MinTick) || v > int64(pool.MaxTick) {
				return fmt.Errorf("%w: tick %d out of range", ErrMalformed, v)
			}
			if f.num == rangeLower {
				r.Lower = int32(v)
			} else {
				r.Upper = int32(v)
			}
		case rangeLiquidity:
			return f.u256(&r.Liquidity)
		}
		return nil
	})
	return r, err
}
