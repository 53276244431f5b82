package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/holiman/uint256"

	"poolbook/domain/orderbook"
	"poolbook/domain/pool"
	"poolbook/domain/ray"
	"poolbook/infra/kafka"
	"poolbook/service"
)

type intakeFunc func(context.Context, orderbook.Order) (uint64, error)

func (f intakeFunc) Intake(ctx context.Context, o orderbook.Order) (uint64, error) {
	return f(ctx, o)
}

func TestIntakeHandler(t *testing.T) {
	served := pool.ID{1}
	busy := errors.New("store busy")
	h := intakeHandler(intakeFunc(func(_ context.Context, o orderbook.Order) (uint64, error) {
		switch o.Pool {
		case served:
			return 1, nil
		case pool.ID{2}:
			return 0, fmt.Errorf("%w: %s", service.ErrUnknownPool, o.Pool)
		}
		return 0, busy
	}))

	mk := func(id pool.ID) orderbook.Order {
		return orderbook.NewOrder(id, orderbook.Bid, ray.FromUint64(1), uint256.NewInt(1), orderbook.Meta{})
	}
	ctx := context.Background()
	if err := h(ctx, mk(served)); err != nil {
		t.Fatalf("served pool: %v", err)
	}
	if err := h(ctx, mk(pool.ID{2})); !errors.Is(err, kafka.ErrSkip) || !errors.Is(err, service.ErrUnknownPool) {
		t.Fatalf("unknown pool: err = %v; want ErrSkip", err)
	}
	if err := h(ctx, mk(pool.ID{3})); !errors.Is(err, busy) || errors.Is(err, kafka.ErrSkip) {
		t.Fatalf("transient: err = %v; want retryable", err)
	}
}
