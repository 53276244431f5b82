// Package store keeps resting orders between rounds in a SQL database.
// SQLite serves single-node runs and tests; PostgreSQL serves shared
// deployments. Orders are stored in their canonical codec encoding and
// always read back in arrival order.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/lib/pq"

	"poolbook/codec"
	"poolbook/domain/orderbook"
	"poolbook/domain/pool"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrUnknownDriver = errors.New("store: unknown driver")
	ErrDuplicate     = errors.New("store: duplicate arrival sequence")
)

const (
	maxRetries = 10

	// removeBatch keeps IN lists under the bind-parameter limits of both drivers.
	removeBatch = 500
)

type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and creates the schema. Postgres
// connections are retried while the server comes up.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var schema []string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := connect(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// One writer; avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	slog.Info("STORE: ready", "driver", driver)
	return &Store{db: db, driver: driver}, nil
}

func connect(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	var err error
	for i := 0; i < maxRetries; i++ {
		var db *sql.DB
		db, err = sql.Open(driver, dsn)
		if err == nil {
			err = db.PingContext(ctx)
			if err == nil {
				return db, nil
			}
			_ = db.Close()
		}
		if driver == DriverSQLite || ctx.Err() != nil {
			break
		}

		slog.Warn("STORE: waiting for database", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect %s: %w", driver, err)
}

var sqliteSchema = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	`CREATE TABLE IF NOT EXISTS resting_orders (
		pool BLOB NOT NULL,
		arrival_seq INTEGER NOT NULL,
		side INTEGER NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (pool, arrival_seq)
	);`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS resting_orders (
		pool BYTEA NOT NULL,
		arrival_seq BIGINT NOT NULL,
		side SMALLINT NOT NULL,
		payload BYTEA NOT NULL,
		PRIMARY KEY (pool, arrival_seq)
	);`,
}

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Put stores o. Its arrival sequence must already be assigned.
func (s *Store) Put(ctx context.Context, o orderbook.Order) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM resting_orders WHERE pool = ? AND arrival_seq = ?"),
		o.Pool[:], int64(o.Meta.ArrivalSeq),
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("check order %d: %w", o.Meta.ArrivalSeq, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %d", ErrDuplicate, o.Meta.ArrivalSeq)
	}

	_, err = s.db.ExecContext(ctx,
		s.rebind("INSERT INTO resting_orders (pool, arrival_seq, side, payload) VALUES (?, ?, ?, ?)"),
		o.Pool[:], int64(o.Meta.ArrivalSeq), int(o.Side), codec.EncodeOrder(o),
	)
	if err != nil {
		return fmt.Errorf("insert order %d: %w", o.Meta.ArrivalSeq, err)
	}
	return nil
}

// Load returns the resting bids and asks of a pool, each in arrival order.
func (s *Store) Load(ctx context.Context, id pool.ID) (bids, asks []orderbook.Order, err error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT payload FROM resting_orders WHERE pool = ? ORDER BY arrival_seq ASC"),
		id[:],
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, nil, fmt.Errorf("scan order: %w", err)
		}
		o, err := codec.DecodeOrder(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("decode order: %w", err)
		}
		if o.Side == orderbook.Bid {
			bids = append(bids, o)
		} else {
			asks = append(asks, o)
		}
	}
	return bids, asks, rows.Err()
}

// RemoveOrders deletes exactly the listed arrival sequences of a pool,
// once a round has consumed them. Orders stored after the round loaded
// the pool stay put whatever their sequence.
func (s *Store) RemoveOrders(ctx context.Context, id pool.ID, seqs []uint64) (int64, error) {
	var total int64
	for chunk := range slices.Chunk(seqs, removeBatch) {
		args := make([]any, 0, len(chunk)+1)
		args = append(args, id[:])
		for _, seq := range chunk {
			args = append(args, int64(seq))
		}
		q := "DELETE FROM resting_orders WHERE pool = ? AND arrival_seq IN (?" +
			strings.Repeat(", ?", len(chunk)-1) + ")"
		res, err := s.db.ExecContext(ctx, s.rebind(q), args...)
		if err != nil {
			return total, fmt.Errorf("remove orders: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("remove orders: %w", err)
		}
		total += n
	}
	return total, nil
}

// LastSeq returns the highest stored arrival sequence, or 0.
func (s *Store) LastSeq(ctx context.Context) (uint64, error) {
	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(arrival_seq) FROM resting_orders").Scan(&last); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	if !last.Valid {
		return 0, nil
	}
	return uint64(last.Int64), nil
}
