package pool

import (
	"fmt"

	"github.com/holiman/uint256"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	// MinSqrtRatio is SqrtPriceAtTick(MinTick).
	MinSqrtRatio = uint256.MustFromDecimal("4295128739")
	// MaxSqrtRatio is SqrtPriceAtTick(MaxTick).
	MaxSqrtRatio = uint256.MustFromDecimal("1461446703485210103287273052203988822378723970342")
)

// Q128 multipliers for sqrt(1.0001)^-(2^i), i = 1..19.
var tickRatios = [...]*uint256.Int{
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

var (
	oddTickRatio = uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")
	q128         = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	maxUint256   = new(uint256.Int).SetAllOne()
	lowMask32    = uint256.NewInt(0xffffffff)
)

// SqrtPriceX96 is a Q64.96 square-root price as stored by the pool contract.
type SqrtPriceX96 struct {
	v uint256.Int
}

func NewSqrtPriceX96(v *uint256.Int) SqrtPriceX96 {
	var p SqrtPriceX96
	p.v.Set(v)
	return p
}

// SqrtPriceAtTick returns sqrt(1.0001^tick) * 2^96, rounded up, matching
// the on-chain tick math bit for bit.
func SqrtPriceAtTick(tick int32) (SqrtPriceX96, error) {
	if tick < MinTick || tick > MaxTick {
		return SqrtPriceX96{}, fmt.Errorf("tick %d: %w", tick, ErrInvalidPrice)
	}
	abs := uint32(tick)
	if tick < 0 {
		abs = uint32(-tick)
	}

	ratio := new(uint256.Int)
	if abs&1 != 0 {
		ratio.Set(oddTickRatio)
	} else {
		ratio.Set(q128)
	}
	for i, m := range tickRatios {
		if abs&(2<<i) != 0 {
			ratio.Mul(ratio, m)
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up.
	rem := new(uint256.Int).And(ratio, lowMask32)
	ratio.Rsh(ratio, 32)
	if !rem.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return SqrtPriceX96{v: *ratio}, nil
}

// Int returns a copy of the raw Q64.96 value.
func (p SqrtPriceX96) Int() *uint256.Int {
	return new(uint256.Int).Set(&p.v)
}

func (p SqrtPriceX96) Cmp(o SqrtPriceX96) int {
	return p.v.Cmp(&o.v)
}

func (p SqrtPriceX96) String() string {
	return p.v.Dec()
}

// Valid reports whether the price maps to a tick.
func (p SqrtPriceX96) Valid() bool {
	return !p.v.Lt(MinSqrtRatio) && p.v.Lt(MaxSqrtRatio)
}

// Tick returns the greatest tick whose sqrt price is <= p.
func (p SqrtPriceX96) Tick() (int32, error) {
	if !p.Valid() {
		return 0, fmt.Errorf("sqrt price %s: %w", p, ErrInvalidPrice)
	}
	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		at, _ := SqrtPriceAtTick(mid)
		if at.Cmp(p) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}
