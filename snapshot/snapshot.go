package snapshot

import "time"

// Checkpoint holds the encoded latest round per pool as of Seq.
type Checkpoint struct {
	Seq     uint64
	Created time.Time
	Rounds  [][]byte
}
