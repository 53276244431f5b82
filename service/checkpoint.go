package service

import (
	"log/slog"
	"time"

	"poolbook/codec"
	"poolbook/snapshot"
)

// Checkpoint writes the latest round of every pool, then drops journal
// segments the checkpoint covers.
func (s *RoundService) Checkpoint(w *snapshot.Writer) error {
	s.commit.Lock()
	seq := s.rounds.Current()
	s.mu.Lock()
	rounds := make([]*codec.Round, 0, len(s.latest))
	for _, id := range s.Pools() {
		if r, ok := s.latest[id]; ok {
			rounds = append(rounds, r.envelope())
		}
	}
	s.mu.Unlock()
	s.commit.Unlock()

	if err := w.Write(seq, rounds); err != nil {
		return err
	}
	return s.deps.Journal.TruncateBefore(seq)
}

// RestoreFromCheckpoint loads the checkpoint in dir, if any. Run it
// before RestoreFromJournal.
func (s *RoundService) RestoreFromCheckpoint(dir string) error {
	seq, rounds, err := snapshot.Load(dir)
	if err != nil {
		return err
	}
	for _, r := range rounds {
		s.Restore(r)
	}
	s.rounds.Advance(seq)
	slog.Info("ROUND: checkpoint loaded", "seq", seq, "pools", len(rounds))
	return nil
}

// StartCheckpointJob checkpoints every interval until stop is closed.
func (s *RoundService) StartCheckpointJob(dir string, interval time.Duration, stop <-chan struct{}) {
	w := &snapshot.Writer{Dir: dir}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if err := s.Checkpoint(w); err != nil {
					slog.Error("ROUND: checkpoint failed", "error", err)
				}
			}
		}
	}()
}
