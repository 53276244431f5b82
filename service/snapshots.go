package service

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"poolbook/config"
	"poolbook/domain/pool"
)

// ConfigSnapshots serves AMM state from the pool definitions in the
// node configuration. Pools without a sqrt price have no AMM leg.
type ConfigSnapshots struct {
	pools map[pool.ID]config.Pool
}

func NewConfigSnapshots(pools []config.Pool) (*ConfigSnapshots, error) {
	m := make(map[pool.ID]config.Pool, len(pools))
	for _, p := range pools {
		id, err := p.PoolID()
		if err != nil {
			return nil, err
		}
		m[id] = p
	}
	return &ConfigSnapshots{pools: m}, nil
}

// Snapshot validates the configured state on every call so a bad pool
// definition aborts that pool's rounds only.
func (c *ConfigSnapshots) Snapshot(_ context.Context, id pool.ID) (*pool.Snapshot, error) {
	p, ok := c.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPool, id)
	}
	if p.SqrtPriceX96 == "" {
		return nil, nil
	}

	price, err := uint256.FromDecimal(p.SqrtPriceX96)
	if err != nil {
		return nil, fmt.Errorf("sqrt price: %w", err)
	}

	ranges := make([]pool.LiqRange, 0, len(p.Ranges))
	for _, r := range p.Ranges {
		liq, err := uint256.FromDecimal(r.Liquidity)
		if err != nil {
			return nil, fmt.Errorf("range [%d, %d) liquidity: %w", r.Lower, r.Upper, err)
		}
		lr, err := pool.NewLiqRange(r.Lower, r.Upper, liq)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, lr)
	}
	return pool.NewSnapshot(ranges, pool.NewSqrtPriceX96(price))
}
