package actionlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gridspire.dev/internal/protocol"
)

// Writer appends records to an action log. The file is opened once, every
// write is flushed immediately (a desync investigation must be able to
// inspect a partially written file), and Close is idempotent.
//
// The handle is owned exclusively by the active recording session; nothing
// else writes to it.
type Writer struct {
	path   string
	f      *os.File
	bw     *bufio.Writer
	closed bool
}

// Create opens path for append, creating parent directories as needed, and
// writes the meta line. Recording fails closed: any error here aborts the
// session rather than silently dropping data.
func Create(path string, meta Meta) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", protocol.ErrIO, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", protocol.ErrIO, err)
	}
	w := &Writer{path: path, f: f, bw: bufio.NewWriter(f)}
	meta.Type = RecordMeta
	if meta.Version == 0 {
		meta.Version = protocol.Version
	}
	if err := w.writeLine(meta); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) Path() string { return w.path }

// WriteTimeslot appends one self-contained {tick, actions} line.
func (w *Writer) WriteTimeslot(tick uint64, actions []protocol.Action) error {
	if actions == nil {
		actions = []protocol.Action{}
	}
	return w.writeLine(Timeslot{Type: RecordTimeslot, Tick: tick, Actions: actions})
}

// WriteCheckpoint appends a checkpoint line carrying the root digest inline
// and the relative path of the checkpoint tree file.
func (w *Writer) WriteCheckpoint(tick uint64, hexDigest, relFile string) error {
	return w.writeLine(Checkpoint{Type: RecordCheckpoint, Tick: tick, Hash: hexDigest, File: relFile})
}

func (w *Writer) writeLine(v any) error {
	if w.closed {
		return fmt.Errorf("%s: writer closed", protocol.ErrIO)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: %w", protocol.ErrIO, err)
	}
	if _, err := w.bw.Write(b); err != nil {
		return fmt.Errorf("%s: %w", protocol.ErrIO, err)
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return fmt.Errorf("%s: %w", protocol.ErrIO, err)
	}
	// Durability over throughput: lines are small and infrequent relative to
	// the tick rate.
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("%s: %w", protocol.ErrIO, err)
	}
	return nil
}

// Close flushes and closes the underlying handle. Safe to call twice.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var err1 error
	if w.bw != nil {
		err1 = w.bw.Flush()
	}
	if w.f != nil {
		if err := w.f.Close(); err1 == nil {
			err1 = err
		}
	}
	return err1
}
