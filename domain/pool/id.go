package pool

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ID identifies one trading pool. It is assigned at intake and never changes.
type ID [32]byte

func ParseID(s string) (ID, error) {
	var id ID
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return id, fmt.Errorf("pool id %q: %w", s, err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("pool id %q: want %d bytes, got %d", s, len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

func (id ID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id ID) IsZero() bool {
	return id == ID{}
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(b []byte) error {
	v, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
