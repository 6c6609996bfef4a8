// Package actionlog persists per-tick action batches to a durable,
// line-oriented, append-only JSONL log, interleaved with periodic checkpoint
// references. Every line is independently parseable.
package actionlog

import "gridspire.dev/internal/protocol"

const (
	RecordMeta       = "meta"
	RecordTimeslot   = "timeslot"
	RecordCheckpoint = "checkpoint"
)

// Meta is the first line of every log: schema version, RNG seed and the
// initial settings needed to reconstruct an identical fresh simulation.
type Meta struct {
	Type           string         `json:"type"`
	Version        int            `json:"version"`
	Seed           int64          `json:"seed"`
	Settings       map[string]any `json:"settings,omitempty"`
	ChecksumPeriod int            `json:"checksum_period"`
	ReplayID       string         `json:"replay_id,omitempty"`
}

// Timeslot is the ordered batch of all recorded actions for one tick.
type Timeslot struct {
	Type    string            `json:"type"`
	Tick    uint64            `json:"tick"`
	Actions []protocol.Action `json:"actions"`
}

// Checkpoint stores the root digest inline plus the relative path of the
// per-tick checkpoint tree file.
type Checkpoint struct {
	Type string `json:"type"`
	Tick uint64 `json:"tick"`
	Hash string `json:"hash"`
	File string `json:"file,omitempty"`
}

// Entry is one parsed non-meta log line.
type Entry struct {
	Timeslot   *Timeslot
	Checkpoint *Checkpoint
}

// Tick returns the entry's tick regardless of kind.
func (e Entry) Tick() uint64 {
	if e.Timeslot != nil {
		return e.Timeslot.Tick
	}
	if e.Checkpoint != nil {
		return e.Checkpoint.Tick
	}
	return 0
}
