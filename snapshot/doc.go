// Package snapshot checkpoints the latest round of every pool so the
// round journal can be truncated. A node restarts from the checkpoint and
// replays only the journal written after it.
package snapshot
