// Package ray implements the exact fixed-point price used across the book.
//
// A Ray is an unsigned 256-bit numerator over an implicit denominator of
// 10^27. Every comparison is an integer comparison; there is no float
// conversion anywhere on the path from order intake to clearing bounds.
package ray

import (
	"errors"
	"iter"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the number of implied fractional digits.
const Decimals = 27

var (
	ErrNegative  = errors.New("ray: negative value")
	ErrPrecision = errors.New("ray: more than 27 fractional digits")
	ErrOverflow  = errors.New("ray: value exceeds 256 bits")
)

// Ray is an immutable price ratio. The zero value is Zero.
type Ray struct {
	v uint256.Int
}

var (
	// Zero is the lower-bound default for an empty reduction.
	Zero Ray
	// Max is the "unconstrained" sentinel: all 256 bits set.
	Max = Ray{v: *new(uint256.Int).SetAllOne()}

	unit = uint256.MustFromDecimal("1000000000000000000000000000")
	q96  = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
)

// New builds a Ray from its raw numerator. A nil numerator yields Zero.
func New(raw *uint256.Int) Ray {
	var r Ray
	if raw != nil {
		r.v.Set(raw)
	}
	return r
}

// FromUint64 returns the Ray for a whole number of quote units.
func FromUint64(whole uint64) Ray {
	var r Ray
	r.v.Mul(uint256.NewInt(whole), unit)
	return r
}

// FromBytes32 decodes a big-endian numerator.
func FromBytes32(b [32]byte) Ray {
	var r Ray
	r.v.SetBytes32(b[:])
	return r
}

// FromSqrtPriceX96 converts a Q64.96 square-root price into a Ray.
// Results that do not fit in 256 bits saturate to Max.
func FromSqrtPriceX96(sqrtPrice *uint256.Int) Ray {
	priceX96, overflow := new(uint256.Int).MulDivOverflow(sqrtPrice, sqrtPrice, q96)
	if overflow {
		return Max
	}
	scaled, overflow := new(uint256.Int).MulDivOverflow(priceX96, unit, q96)
	if overflow {
		return Max
	}
	return Ray{v: *scaled}
}

// Parse reads a non-negative decimal string such as "1250.5".
func Parse(s string) (Ray, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, err
	}
	if d.Sign() < 0 {
		return Zero, ErrNegative
	}
	scaled := d.Shift(Decimals)
	if !scaled.IsInteger() {
		return Zero, ErrPrecision
	}
	u, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return Zero, ErrOverflow
	}
	return Ray{v: *u}, nil
}

// Raw returns a copy of the numerator.
func (r Ray) Raw() *uint256.Int {
	return new(uint256.Int).Set(&r.v)
}

func (r Ray) Bytes32() [32]byte {
	return r.v.Bytes32()
}

// Cmp returns -1, 0 or +1.
func (r Ray) Cmp(o Ray) int {
	return r.v.Cmp(&o.v)
}

func (r Ray) Less(o Ray) bool  { return r.v.Lt(&o.v) }
func (r Ray) Equal(o Ray) bool { return r.v.Eq(&o.v) }
func (r Ray) IsZero() bool     { return r.v.IsZero() }
func (r Ray) IsMax() bool      { return r.Equal(Max) }

// Min returns the smaller of r and o.
func (r Ray) Min(o Ray) Ray {
	if o.Less(r) {
		return o
	}
	return r
}

// Max returns the larger of r and o.
func (r Ray) Max(o Ray) Ray {
	if r.Less(o) {
		return o
	}
	return r
}

// Decimal returns the exact decimal value.
func (r Ray) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(r.v.ToBig(), -Decimals)
}

func (r Ray) String() string {
	return r.Decimal().String()
}

func (r Ray) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Ray) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ReduceMin returns the smallest value of seq, or Zero when seq is empty.
func ReduceMin(seq iter.Seq[Ray]) Ray {
	out, seen := Zero, false
	for r := range seq {
		if !seen || r.Less(out) {
			out, seen = r, true
		}
	}
	return out
}

// ReduceMax returns the largest value of seq, or Max when seq is empty.
// The empty case deliberately differs from ReduceMin: an empty upper bound
// must read as unconstrained, never as zero.
func ReduceMax(seq iter.Seq[Ray]) Ray {
	out, seen := Max, false
	for r := range seq {
		if !seen || out.Less(r) {
			out, seen = r, true
		}
	}
	return out
}
