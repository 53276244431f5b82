package codec

import (
	"errors"
	"testing"
)

func TestRoundRoundTrip(t *testing.T) {
	book := testBook(t, true)
	in := &Round{ID: [16]byte{1, 2, 3}, Seq: 9, Pool: testPool, BuiltAt: -5, Book: book}

	out, err := DecodeRound(EncodeRound(in))
	if err != nil {
		t.Fatal(err)
	}
	if out.ID != in.ID || out.Seq != 9 || out.Pool != testPool || out.BuiltAt != -5 {
		t.Fatalf("envelope = %+v", out)
	}
	if out.Aborted() || !out.Book.Equal(book) {
		t.Fatal("book did not round trip")
	}
}

func TestAbortedRound(t *testing.T) {
	in := &Round{Seq: 3, Pool: testPool, Abort: "snapshot unavailable"}
	out, err := DecodeRound(EncodeRound(in))
	if err != nil {
		t.Fatal(err)
	}
	if !out.Aborted() || out.Abort != in.Abort {
		t.Fatalf("aborted round = %+v", out)
	}
}

func TestRoundPoolMismatch(t *testing.T) {
	in := &Round{Pool: [32]byte{0xff}, Book: testBook(t, false)}
	if _, err := DecodeRound(EncodeRound(in)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v; want ErrMalformed", err)
	}
}
