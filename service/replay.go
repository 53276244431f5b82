package service

import (
	"fmt"
	"log/slog"

	"poolbook/codec"
	entrywal "poolbook/infra/wal/entry"
)

// ReplayJournal decodes every journaled round in dir, in sequence order,
// and passes it to fn. It returns the last sequence read.
func ReplayJournal(dir string, fn func(*codec.Round) error) (uint64, error) {
	lastSeq, err := entrywal.Replay(dir, func(rec *entrywal.Record) error {
		switch rec.Type {
		case entrywal.RecordRound, entrywal.RecordAbort:
		default:
			return fmt.Errorf("journal seq %d: unknown record type %d", rec.Seq, rec.Type)
		}

		r, err := codec.DecodeRound(rec.Data)
		if err != nil {
			return fmt.Errorf("journal seq %d: %w", rec.Seq, err)
		}
		if r.Seq != rec.Seq {
			return fmt.Errorf("journal seq %d: envelope carries seq %d", rec.Seq, r.Seq)
		}
		if (rec.Type == entrywal.RecordAbort) != r.Aborted() {
			return fmt.Errorf("journal seq %d: %s record with mismatched body", rec.Seq, rec.Type)
		}
		return fn(r)
	})
	if err != nil {
		return lastSeq, err
	}
	return lastSeq, nil
}

// RestoreFromJournal must run before the service accepts traffic. It
// brings back the latest round of every pool.
func (s *RoundService) RestoreFromJournal(dir string) error {
	last, err := ReplayJournal(dir, func(r *codec.Round) error {
		s.Restore(r)
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("ROUND: journal replay completed", "last_seq", last)
	return nil
}
