package service

import "context"

// Sender is a keyed message producer.
type Sender interface {
	Send(ctx context.Context, key, value []byte) error
}

// ForwardAuction hands each round to an external auction over a message
// topic, keyed by pool so a pool's rounds stay ordered.
type ForwardAuction struct {
	out Sender
}

func NewForwardAuction(out Sender) *ForwardAuction {
	return &ForwardAuction{out: out}
}

func (a *ForwardAuction) Submit(ctx context.Context, r *Round, encoded []byte) error {
	return a.out.Send(ctx, r.Pool[:], encoded)
}
