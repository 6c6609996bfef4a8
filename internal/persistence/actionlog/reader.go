package actionlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"gridspire.dev/internal/protocol"
)

// rawLine is the union of every record's fields; Type discriminates.
type rawLine struct {
	Type           string            `json:"type"`
	Version        int               `json:"version"`
	Seed           int64             `json:"seed"`
	Settings       map[string]any    `json:"settings"`
	ChecksumPeriod int               `json:"checksum_period"`
	ReplayID       string            `json:"replay_id"`
	Tick           uint64            `json:"tick"`
	Actions        []protocol.Action `json:"actions"`
	Hash           string            `json:"hash"`
	File           string            `json:"file"`
}

// ReadAll parses a whole log. Malformed lines are skipped, not fatal: replay
// tooling must degrade gracefully on a log truncated by a crash. The skipped
// count is surfaced so verify/inspect can report it.
func ReadAll(path string) (Meta, []Entry, int, error) {
	s, err := Open(path, 0)
	if err != nil {
		return Meta{}, nil, 0, err
	}
	defer s.Close()

	var entries []Entry
	for {
		e, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return s.Meta(), entries, s.Skipped(), err
		}
		entries = append(entries, e)
	}
	return s.Meta(), entries, s.Skipped(), nil
}

// Stream is an incremental reader over a log: a finite, forward-only
// sequence of entries from a starting tick. Not restartable without
// reopening.
type Stream struct {
	f       io.Closer
	zr      *zstd.Decoder
	sc      *bufio.Scanner
	meta    Meta
	from    uint64
	skipped int
	done    bool
}

// Open opens a log (plain .jsonl or archived .jsonl.zst) and parses its meta
// line. Entries with tick < fromTick are skipped during iteration.
func Open(path string, fromTick uint64) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", protocol.ErrIO, err)
	}

	s := &Stream{f: f, from: fromTick}
	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%s: %w", protocol.ErrIO, err)
		}
		s.zr = zr
		r = zr
	}
	s.sc = bufio.NewScanner(r)
	s.sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	if err := s.readMeta(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Stream) readMeta() error {
	for s.sc.Scan() {
		line := strings.TrimSpace(s.sc.Text())
		if line == "" {
			continue
		}
		var raw rawLine
		if err := json.Unmarshal([]byte(line), &raw); err != nil || raw.Type != RecordMeta {
			s.skipped++
			continue
		}
		s.meta = Meta{
			Type:           raw.Type,
			Version:        raw.Version,
			Seed:           raw.Seed,
			Settings:       raw.Settings,
			ChecksumPeriod: raw.ChecksumPeriod,
			ReplayID:       raw.ReplayID,
		}
		return nil
	}
	if err := s.sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", protocol.ErrIO, err)
	}
	return fmt.Errorf("%s: no meta line in log", protocol.ErrParse)
}

// Meta returns the parsed meta record.
func (s *Stream) Meta() Meta { return s.meta }

// Skipped returns the number of malformed lines skipped so far.
func (s *Stream) Skipped() int { return s.skipped }

// Next returns the next entry, or io.EOF when the log is exhausted.
func (s *Stream) Next() (Entry, error) {
	if s.done {
		return Entry{}, io.EOF
	}
	for s.sc.Scan() {
		line := strings.TrimSpace(s.sc.Text())
		if line == "" {
			continue
		}
		var raw rawLine
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			s.skipped++
			continue
		}
		switch raw.Type {
		case RecordTimeslot:
			if raw.Tick < s.from {
				continue
			}
			return Entry{Timeslot: &Timeslot{Type: raw.Type, Tick: raw.Tick, Actions: raw.Actions}}, nil
		case RecordCheckpoint:
			if raw.Tick < s.from {
				continue
			}
			return Entry{Checkpoint: &Checkpoint{Type: raw.Type, Tick: raw.Tick, Hash: raw.Hash, File: raw.File}}, nil
		default:
			s.skipped++
		}
	}
	s.done = true
	if err := s.sc.Err(); err != nil {
		return Entry{}, fmt.Errorf("%s: %w", protocol.ErrIO, err)
	}
	return Entry{}, io.EOF
}

func (s *Stream) Close() error {
	if s.zr != nil {
		s.zr.Close()
	}
	if s.f != nil {
		return s.f.Close()
	}
	return nil
}
