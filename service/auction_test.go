package service

import (
	"bytes"
	"context"
	"testing"
)

type captureSender struct{ key, value []byte }

func (c *captureSender) Send(_ context.Context, key, value []byte) error {
	c.key, c.value = key, value
	return nil
}

func TestForwardAuctionKeysByPool(t *testing.T) {
	out := &captureSender{}
	a := NewForwardAuction(out)
	r := &Round{Pool: poolA}
	if err := a.Submit(context.Background(), r, []byte("round")); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.key, poolA[:]) || string(out.value) != "round" {
		t.Fatalf("sent key %x value %q", out.key, out.value)
	}
}
