package snapshot

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"poolbook/codec"
)

// Load reads the checkpoint in dir. A missing checkpoint is not an error:
// it returns seq 0 and no rounds.
func Load(dir string) (uint64, []*codec.Round, error) {
	f, err := os.Open(filepath.Join(dir, fileName))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	var c Checkpoint
	if err := gob.NewDecoder(f).Decode(&c); err != nil {
		return 0, nil, fmt.Errorf("decode checkpoint: %w", err)
	}

	rounds := make([]*codec.Round, 0, len(c.Rounds))
	for i, b := range c.Rounds {
		r, err := codec.DecodeRound(b)
		if err != nil {
			return 0, nil, fmt.Errorf("checkpoint round %d: %w", i, err)
		}
		rounds = append(rounds, r)
	}
	return c.Seq, rounds, nil
}
