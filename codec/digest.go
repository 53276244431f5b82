package codec

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"poolbook/domain/orderbook"
)

// Digest identifies a book's exact content. Two nodes that built the same
// round from the same inputs report the same digest.
type Digest [32]byte

func DigestOf(b *orderbook.OrderBook) Digest {
	return blake3.Sum256(EncodeBook(b))
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
