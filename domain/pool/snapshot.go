package pool

import (
	"errors"
	"fmt"
	"slices"

	"github.com/holiman/uint256"

	"poolbook/domain/ray"
)

var (
	ErrInvalidLiquidityRange = errors.New("invalid liquidity range")
	ErrInvalidPrice          = errors.New("invalid price")
)

// LiqRange is liquidity provided over the half-open tick interval [Lower, Upper).
type LiqRange struct {
	Lower     int32
	Upper     int32
	Liquidity uint256.Int
}

func NewLiqRange(lower, upper int32, liquidity *uint256.Int) (LiqRange, error) {
	if lower >= upper {
		return LiqRange{}, fmt.Errorf("range [%d, %d): %w", lower, upper, ErrInvalidLiquidityRange)
	}
	if lower < MinTick || upper > MaxTick {
		return LiqRange{}, fmt.Errorf("range [%d, %d) outside tick bounds: %w", lower, upper, ErrInvalidLiquidityRange)
	}
	r := LiqRange{Lower: lower, Upper: upper}
	if liquidity != nil {
		r.Liquidity.Set(liquidity)
	}
	return r, nil
}

func (r LiqRange) Contains(tick int32) bool {
	return r.Lower <= tick && tick < r.Upper
}

// Snapshot is a read-only capture of an AMM pool: its liquidity by tick
// range and its current price. It is validated once, in NewSnapshot.
type Snapshot struct {
	ranges    []LiqRange
	sqrtPrice SqrtPriceX96
	tick      int32
}

// NewSnapshot validates ranges (sorted by Lower, non-overlapping; touching
// boundaries allowed) and derives the current tick from sqrtPrice.
func NewSnapshot(ranges []LiqRange, sqrtPrice SqrtPriceX96) (*Snapshot, error) {
	for i, r := range ranges {
		if r.Lower >= r.Upper || r.Lower < MinTick || r.Upper > MaxTick {
			return nil, fmt.Errorf("range %d [%d, %d): %w", i, r.Lower, r.Upper, ErrInvalidLiquidityRange)
		}
		if i > 0 && r.Lower < ranges[i-1].Upper {
			return nil, fmt.Errorf("range %d [%d, %d) overlaps [%d, %d): %w",
				i, r.Lower, r.Upper, ranges[i-1].Lower, ranges[i-1].Upper, ErrInvalidLiquidityRange)
		}
	}
	tick, err := sqrtPrice.Tick()
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		ranges:    slices.Clone(ranges),
		sqrtPrice: sqrtPrice,
		tick:      tick,
	}, nil
}

// Ranges returns a copy of the liquidity ranges.
func (s *Snapshot) Ranges() []LiqRange {
	return slices.Clone(s.ranges)
}

func (s *Snapshot) SqrtPrice() SqrtPriceX96 { return s.sqrtPrice }
func (s *Snapshot) CurrentTick() int32      { return s.tick }

// Price is the pool's current marginal price as a Ray.
func (s *Snapshot) Price() ray.Ray {
	return ray.FromSqrtPriceX96(s.sqrtPrice.Int())
}

// CurrentLiquidity sums the liquidity of every range containing the current tick.
func (s *Snapshot) CurrentLiquidity() *uint256.Int {
	total := new(uint256.Int)
	for i := range s.ranges {
		if s.ranges[i].Contains(s.tick) {
			total.Add(total, &s.ranges[i].Liquidity)
		}
	}
	return total
}

// Equal compares two snapshots field by field. Nil snapshots are equal.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.tick != o.tick || s.sqrtPrice.Cmp(o.sqrtPrice) != 0 || len(s.ranges) != len(o.ranges) {
		return false
	}
	for i := range s.ranges {
		a, b := &s.ranges[i], &o.ranges[i]
		if a.Lower != b.Lower || a.Upper != b.Upper || !a.Liquidity.Eq(&b.Liquidity) {
			return false
		}
	}
	return true
}
