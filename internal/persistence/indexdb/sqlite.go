// Package indexdb maintains a secondary sqlite index of recorded replays,
// their checkpoints and any divergences found during verification. Writes
// flow through a single writer goroutine so the recording path never blocks
// on the database.
package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"gridspire.dev/internal/sim/hashtree"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu orders enqueues against Close: the channel is only closed while no
	// sender holds the lock, so a send can never hit a closed channel.
	mu     sync.Mutex
	closed bool
}

type reqKind int

const (
	reqReplay reqKind = iota + 1
	reqCheckpoint
	reqDivergence
	reqBarrier
)

type req struct {
	kind reqKind

	replay     ReplayRow
	checkpoint CheckpointRow
	divergence DivergenceRow
	done       chan struct{}
}

type ReplayRow struct {
	ReplayID       string
	Seed           int64
	Version        int
	ChecksumPeriod int
	Path           string
	CreatedAt      string
}

type CheckpointRow struct {
	ReplayID string
	Tick     uint64
	Digest   string
	Path     string
}

type DivergenceRow struct {
	ReplayID string
	Tick     uint64
	Path     string
	Kind     string
	Expected string
	Actual   string
}

func Open(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-style workload; NORMAL is enough durability for a
	// secondary index (the log file is the source of truth).
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS replays (
			replay_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			version INTEGER NOT NULL,
			checksum_period INTEGER NOT NULL,
			path TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			replay_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			path TEXT NOT NULL,
			PRIMARY KEY (replay_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS divergences (
			replay_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			path TEXT NOT NULL,
			kind TEXT NOT NULL,
			expected TEXT NOT NULL,
			actual TEXT NOT NULL,
			PRIMARY KEY (replay_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_tick ON checkpoints(tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) loop() {
	divSeq := map[string]int{}
	for r := range s.ch {
		switch r.kind {
		case reqReplay:
			_, _ = s.db.Exec(
				`INSERT OR REPLACE INTO replays (replay_id, seed, version, checksum_period, path, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				r.replay.ReplayID, r.replay.Seed, r.replay.Version,
				r.replay.ChecksumPeriod, r.replay.Path, r.replay.CreatedAt)
		case reqCheckpoint:
			_, _ = s.db.Exec(
				`INSERT OR REPLACE INTO checkpoints (replay_id, tick, digest, path)
				 VALUES (?, ?, ?, ?)`,
				r.checkpoint.ReplayID, r.checkpoint.Tick, r.checkpoint.Digest, r.checkpoint.Path)
		case reqDivergence:
			key := fmt.Sprintf("%s:%d", r.divergence.ReplayID, r.divergence.Tick)
			seq := divSeq[key]
			divSeq[key] = seq + 1
			_, _ = s.db.Exec(
				`INSERT OR REPLACE INTO divergences (replay_id, tick, seq, path, kind, expected, actual)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				r.divergence.ReplayID, r.divergence.Tick, seq,
				r.divergence.Path, r.divergence.Kind, r.divergence.Expected, r.divergence.Actual)
		case reqBarrier:
			close(r.done)
		}
	}
}

func (s *SQLiteIndex) enqueue(r req) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- r:
	default:
		// Index writes are advisory; never stall the recording path.
	}
}

func (s *SQLiteIndex) RecordReplay(row ReplayRow) {
	if row.CreatedAt == "" {
		row.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	s.enqueue(req{kind: reqReplay, replay: row})
}

func (s *SQLiteIndex) RecordCheckpoint(row CheckpointRow) {
	s.enqueue(req{kind: reqCheckpoint, checkpoint: row})
}

// RecordDivergences stores one row per divergence found at a checkpoint.
func (s *SQLiteIndex) RecordDivergences(replayID string, tick uint64, divs []hashtree.Divergence) {
	for _, d := range divs {
		s.enqueue(req{kind: reqDivergence, divergence: DivergenceRow{
			ReplayID: replayID,
			Tick:     tick,
			Path:     d.String(),
			Kind:     string(d.Kind),
			Expected: d.ExpectedDigest,
			Actual:   d.ActualDigest,
		}})
	}
}

// Close drains pending writes and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Replays lists recorded replays, newest first.
func (s *SQLiteIndex) Replays() ([]ReplayRow, error) {
	rows, err := s.db.Query(
		`SELECT replay_id, seed, version, checksum_period, path, created_at
		 FROM replays ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReplayRow
	for rows.Next() {
		var r ReplayRow
		if err := rows.Scan(&r.ReplayID, &r.Seed, &r.Version, &r.ChecksumPeriod, &r.Path, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Checkpoints lists a replay's checkpoints in tick order.
func (s *SQLiteIndex) Checkpoints(replayID string) ([]CheckpointRow, error) {
	rows, err := s.db.Query(
		`SELECT replay_id, tick, digest, path FROM checkpoints
		 WHERE replay_id = ? ORDER BY tick`, replayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CheckpointRow
	for rows.Next() {
		var r CheckpointRow
		if err := rows.Scan(&r.ReplayID, &r.Tick, &r.Digest, &r.Path); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Divergences lists a replay's recorded divergences in (tick, seq) order.
func (s *SQLiteIndex) Divergences(replayID string) ([]DivergenceRow, error) {
	rows, err := s.db.Query(
		`SELECT replay_id, tick, path, kind, expected, actual FROM divergences
		 WHERE replay_id = ? ORDER BY tick, seq`, replayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DivergenceRow
	for rows.Next() {
		var r DivergenceRow
		if err := rows.Scan(&r.ReplayID, &r.Tick, &r.Path, &r.Kind, &r.Expected, &r.Actual); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Flush blocks until previously enqueued writes have been applied.
func (s *SQLiteIndex) Flush() {
	done := make(chan struct{})
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.ch <- req{kind: reqBarrier, done: done}
	s.mu.Unlock()
	<-done
}
