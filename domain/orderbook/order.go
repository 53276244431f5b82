package orderbook

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"

	"poolbook/domain/pool"
	"poolbook/domain/ray"
)

type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// Address is a 20-byte account address.
type Address [20]byte

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Meta is the storage and provenance data attached at intake.
type Meta struct {
	ID         [32]byte
	ArrivalSeq uint64
	Signer     Address
	ValidBlock uint64
}

// Order is one resting intent. It is a plain value: the book copies orders
// in and out and never mutates them.
type Order struct {
	Pool     pool.ID
	Side     Side
	Price    ray.Ray
	Quantity uint256.Int
	Meta     Meta
}

// NewOrder is a convenience constructor for callers holding a *uint256.Int.
func NewOrder(id pool.ID, side Side, price ray.Ray, qty *uint256.Int, meta Meta) Order {
	o := Order{Pool: id, Side: side, Price: price, Meta: meta}
	if qty != nil {
		o.Quantity.Set(qty)
	}
	return o
}
