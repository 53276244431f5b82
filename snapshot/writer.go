package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"poolbook/codec"
)

const fileName = "checkpoint.bin"

type Writer struct {
	Dir string
}

// Write replaces the checkpoint atomically: a crash leaves either the old
// or the new file, never a partial one.
func (w *Writer) Write(seq uint64, rounds []*codec.Round) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}

	c := Checkpoint{
		Seq:     seq,
		Created: time.Now(),
		Rounds:  make([][]byte, 0, len(rounds)),
	}
	for _, r := range rounds {
		c.Rounds = append(c.Rounds, codec.EncodeRound(r))
	}

	tmp, err := os.CreateTemp(w.Dir, fileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(&c); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(w.Dir, fileName))
}
