// Package orderbook builds the deterministic per-round book of a pool.
//
// A book is constructed once from the pool's resting orders and optional
// AMM snapshot. Each side is stably sorted by a SortStrategy, so orders
// that tie keep their input (arrival) order and every node derives the
// same book from the same inputs. The clearing bounds are the minimum and
// maximum price over both sides.
//
// Books are immutable; accessors return copies and readers need no locks.
package orderbook
