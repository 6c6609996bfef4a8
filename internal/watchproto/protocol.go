// Package watchproto defines the JSON frames of the replay watch websocket
// (separate from the action log schema; the log is the durable format, this
// is a live view).
package watchproto

import "gridspire.dev/internal/protocol"

// Version is the watch protocol version.
const Version = "0.1"

// Client -> Server. First message on the watch WS connection; may be re-sent
// to move the tick filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// FromTick suppresses tick frames before this tick; checkpoint and
	// divergence frames are always delivered.
	FromTick uint64 `json:"from_tick,omitempty"`
}

// HTTP response for GET /v1/watch/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string `json:"protocol_version"`
	ReplayID        string `json:"replay_id"`
	Mode            string `json:"mode"`
	Tick            uint64 `json:"tick"`
	Seed            int64  `json:"seed"`
	ChecksumPeriod  int    `json:"checksum_period"`
}

// Server -> Client. Sent for every executed tick carrying replayable actions.
type TickMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Tick            uint64            `json:"tick"`
	Actions         []protocol.Action `json:"actions,omitempty"`
}

// Server -> Client. A checkpoint was written (recording) or verified clean
// (playback).
type CheckpointMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Hash            string `json:"hash"`
}

// Server -> Client. A checkpoint comparison found differences.
type DivergenceMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Tick            uint64           `json:"tick"`
	Divergences     []DivergenceItem `json:"divergences"`
}

type DivergenceItem struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Server -> Client. The session ended.
type FinishedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Mode            string `json:"mode"`
	Tick            uint64 `json:"tick"`
}

const (
	TypeSubscribe  = "SUBSCRIBE"
	TypeTick       = "tick"
	TypeCheckpoint = "checkpoint"
	TypeDivergence = "divergence"
	TypeFinished   = "finished"
)
