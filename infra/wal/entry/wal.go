// Package entry is the append-only round journal. Every round the service
// builds is framed with a CRC and written here before it is handed on, so
// a restarted node can rebuild its latest books from disk.
package entry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4]
const (
	headerSize = 1 + 8 + 8 + 4
	crcSize    = 4
)

var (
	ErrClosed     = errors.New("journal closed")
	ErrCorrupt    = errors.New("journal record corrupt")
	ErrOutOfOrder = errors.New("journal sequence not monotonic")
)

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
	// SyncEveryWrite fsyncs after each Append.
	SyncEveryWrite bool
}

type WAL struct {
	mu         sync.Mutex
	dir        string
	segSize    int64
	segDur     time.Duration
	syncWrites bool
	current    *segment
	segIndex   int
	lastRotate time.Time
	lastSeq    uint64
}

// Open opens the journal in cfg.Dir and continues writing the newest
// segment. The last sequence already on disk is available via LastSeq.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = 64 << 20
	}

	idx, err := lastSegmentIndex(cfg.Dir)
	if err != nil {
		return nil, err
	}
	last, err := Replay(cfg.Dir, func(*Record) error { return nil })
	if err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}

	// Drop a torn frame left by a crash so new frames start on a boundary.
	path := segmentPath(cfg.Dir, idx)
	if st, err := os.Stat(path); err == nil {
		n, err := validLength(path)
		if err != nil {
			return nil, err
		}
		if n < st.Size() {
			if err := os.Truncate(path, n); err != nil {
				return nil, err
			}
		}
	}

	seg, err := openSegment(cfg.Dir, idx)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:        cfg.Dir,
		segSize:    cfg.SegmentSize,
		segDur:     cfg.SegmentDuration,
		syncWrites: cfg.SyncEveryWrite,
		current:    seg,
		segIndex:   idx,
		lastRotate: time.Now(),
		lastSeq:    last,
	}, nil
}

func (w *WAL) LastSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeq
}

func (w *WAL) Append(r *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		return ErrClosed
	}
	if r.Seq <= w.lastSeq {
		return fmt.Errorf("%w: %d after %d", ErrOutOfOrder, r.Seq, w.lastSeq)
	}

	if err := w.current.append(encodeFrame(r)); err != nil {
		return err
	}
	w.lastSeq = r.Seq

	if w.syncWrites {
		if err := w.current.sync(); err != nil {
			return err
		}
	}

	if w.current.offset >= w.segSize ||
		(w.segDur > 0 && time.Since(w.lastRotate) >= w.segDur) {
		return w.rotate()
	}
	return nil
}

func encodeFrame(r *Record) []byte {
	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerSize+int(payloadLen)+crcSize)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := checksum(buf[:headerSize+int(payloadLen)])
	binary.BigEndian.PutUint32(buf[headerSize+int(payloadLen):], crc)
	return buf
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return ErrClosed
	}
	return w.current.sync()
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	err := errors.Join(w.current.sync(), w.current.close())
	w.current = nil
	return err
}

// TruncateBefore removes closed segments whose records all have a
// sequence at or below seq. The segment being written is never removed.
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := segments(w.dir)
	if err != nil {
		return err
	}
	active := segmentPath(w.dir, w.segIndex)

	for _, path := range files {
		if path == active {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}
	return nil
}
