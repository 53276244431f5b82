// Package codec is the stable wire form of orders and order books.
//
// Messages use the protobuf wire format (written directly with protowire)
// so any node, in any language, can decode an archived round. Fields are
// always emitted in field-number order and zero values are not omitted,
// which makes the encoding canonical: equal books encode to equal bytes.
package codec

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"google.golang.org/protobuf/encoding/protowire"

	"poolbook/infra/memory"
)

var ErrMalformed = errors.New("codec: malformed encoding")

var scratch = memory.NewPool(func() *[]byte {
	b := make([]byte, 0, 4096)
	return &b
})

type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

// fields walks every top-level field of a message.
func fields(data []byte, fn func(f field) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return malformed(protowire.ParseError(n))
		}
		data = data[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(data)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return malformed(protowire.ParseError(n))
		}
		data = data[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

func (f field) want(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("%w: field %d has wire type %d", ErrMalformed, f.num, f.typ)
	}
	return nil
}

// fixed copies a bytes field into dst, requiring an exact length.
func (f field) fixed(dst []byte) error {
	if err := f.want(protowire.BytesType); err != nil {
		return err
	}
	if len(f.bytes) != len(dst) {
		return fmt.Errorf("%w: field %d has %d bytes, want %d", ErrMalformed, f.num, len(f.bytes), len(dst))
	}
	copy(dst, f.bytes)
	return nil
}

func (f field) u256(dst *uint256.Int) error {
	var b [32]byte
	if err := f.fixed(b[:]); err != nil {
		return err
	}
	dst.SetBytes32(b[:])
	return nil
}

func appendVarint(data []byte, num protowire.Number, v uint64) []byte {
	data = protowire.AppendTag(data, num, protowire.VarintType)
	return protowire.AppendVarint(data, v)
}

func appendBytes(data []byte, num protowire.Number, v []byte) []byte {
	data = protowire.AppendTag(data, num, protowire.BytesType)
	return protowire.AppendBytes(data, v)
}

func appendU256(data []byte, num protowire.Number, v *uint256.Int) []byte {
	b := v.Bytes32()
	return appendBytes(data, num, b[:])
}
