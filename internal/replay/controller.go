// Package replay drives recording and playback sessions on top of a
// deterministic simulation. During recording every tick's replayable actions
// are appended to the action log and periodic checksum trees are written;
// during playback the logged actions are re-injected through the normal
// execution path and the rebuilt state is verified against the recorded
// checksums.
package replay

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gridspire.dev/internal/persistence/actionlog"
	"gridspire.dev/internal/persistence/checkpoint"
	"gridspire.dev/internal/persistence/indexdb"
	"gridspire.dev/internal/protocol"
	"gridspire.dev/internal/sim/game"
	"gridspire.dev/internal/sim/hashtree"
	"gridspire.dev/internal/sim/snapshot"
	"gridspire.dev/internal/sim/tuning"
)

type Mode int

const (
	ModeIdle Mode = iota
	ModeRecording
	ModePlayback
	ModeFinished
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRecording:
		return "recording"
	case ModePlayback:
		return "playback"
	case ModeFinished:
		return "finished"
	}
	return "unknown"
}

// Sim is what the controller needs from a simulation. *game.Game satisfies
// it; tests may substitute their own.
type Sim interface {
	snapshot.Registry

	CurrentTick() uint64
	Seed() int64
	Settings() map[string]any
	Step(actions []protocol.Action) (uint64, []game.ActionResult)
}

// DivergenceReport is one checkpoint comparison that found differences.
type DivergenceReport struct {
	Tick        uint64
	Divergences []hashtree.Divergence
}

// Observer receives session events. All callbacks run on the controller's
// goroutine; implementations must not block.
type Observer interface {
	OnTick(tick uint64, actions []protocol.Action)
	OnCheckpoint(tick uint64, digest string)
	OnDivergence(report DivergenceReport)
	OnFinished(mode Mode, tick uint64)
}

type nopObserver struct{}

func (nopObserver) OnTick(uint64, []protocol.Action) {}
func (nopObserver) OnCheckpoint(uint64, string)      {}
func (nopObserver) OnDivergence(DivergenceReport)    {}
func (nopObserver) OnFinished(Mode, uint64)          {}

// NewReplayID derives the id every recording is filed under.
func NewReplayID(seed int64, ts time.Time) string {
	return fmt.Sprintf("replay_%d_%d", seed, ts.Unix())
}

// Controller owns exactly one session at a time. It is not safe for
// concurrent use; drive it from the simulation goroutine.
type Controller struct {
	cfg    tuning.Tuning
	sim    Sim
	mode   Mode
	algo   hashtree.Algo
	logger *log.Logger

	observer Observer
	index    *indexdb.SQLiteIndex

	// Now stamps new replay ids; tests pin it.
	Now func() time.Time

	// NewSim builds a fresh simulation for playback from the log's meta.
	NewSim func(seed int64, settings map[string]any) Sim

	// recording
	replayID string
	writer   *actionlog.Writer
	lastCP   uint64
	wroteCP  bool

	// playback
	meta        actionlog.Meta
	logDir      string
	timeslots   map[uint64][]protocol.Action
	checkpoints map[uint64]*actionlog.Checkpoint
	maxSlotTick uint64
	skipped     int
	reports     []DivergenceReport
	halted      bool
}

func New(sim Sim, cfg tuning.Tuning) (*Controller, error) {
	algo, err := hashtree.ParseAlgo(cfg.HashAlgo)
	if err != nil {
		return nil, err
	}
	return &Controller{
		cfg:      cfg,
		sim:      sim,
		mode:     ModeIdle,
		algo:     algo,
		logger:   log.New(os.Stdout, "[replay] ", log.LstdFlags|log.Lmicroseconds),
		observer: nopObserver{},
		Now:      time.Now,
		NewSim: func(seed int64, settings map[string]any) Sim {
			return game.FromSettings(seed, settings)
		},
	}, nil
}

func (c *Controller) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	c.observer = o
}

// SetIndex attaches an optional replay index; nil detaches it.
func (c *Controller) SetIndex(idx *indexdb.SQLiteIndex) { c.index = idx }

func (c *Controller) Mode() Mode { return c.mode }

func (c *Controller) Meta() actionlog.Meta { return c.meta }

func (c *Controller) ReplayID() string { return c.replayID }

func (c *Controller) Sim() Sim { return c.sim }

func (c *Controller) Reports() []DivergenceReport { return c.reports }

// Skipped reports how many malformed log lines playback ignored.
func (c *Controller) Skipped() int { return c.skipped }

// Halted reports whether playback stopped on a divergence.
func (c *Controller) Halted() bool { return c.halted }

// LogPath returns the action log path a replay id maps to under the data dir.
func (c *Controller) LogPath(replayID string) string {
	return filepath.Join(c.cfg.DataDir, replayID+".jsonl")
}

// BeginRecording starts a recording session on a fresh simulation. The meta
// line is written immediately so even an empty session leaves a valid log.
func (c *Controller) BeginRecording() (string, error) {
	if c.mode != ModeIdle {
		return "", fmt.Errorf("%s: cannot record in mode %s", protocol.ErrBadRequest, c.mode)
	}
	if c.sim.CurrentTick() != 0 {
		return "", fmt.Errorf("%s: recording must start at tick 0, sim is at %d", protocol.ErrBadRequest, c.sim.CurrentTick())
	}

	replayID := NewReplayID(c.sim.Seed(), c.Now())
	w, err := actionlog.Create(c.LogPath(replayID), actionlog.Meta{
		Seed:           c.sim.Seed(),
		Settings:       c.sim.Settings(),
		ChecksumPeriod: c.cfg.CheckpointPeriodTicks,
		ReplayID:       replayID,
	})
	if err != nil {
		return "", err
	}

	c.replayID = replayID
	c.writer = w
	c.lastCP = 0
	c.wroteCP = false
	c.mode = ModeRecording

	if c.index != nil {
		c.index.RecordReplay(indexdb.ReplayRow{
			ReplayID:       replayID,
			Seed:           c.sim.Seed(),
			Version:        protocol.Version,
			ChecksumPeriod: c.cfg.CheckpointPeriodTicks,
			Path:           replayID + ".jsonl",
		})
	}
	c.logger.Printf("recording %s seed=%d period=%d", replayID, c.sim.Seed(), c.cfg.CheckpointPeriodTicks)
	return replayID, nil
}

// Tick advances the session by one simulation tick. The live action batch is
// filtered by mode: recording accepts any known action, playback accepts only
// control actions (the logged batch is injected instead). Returns the
// executed tick and per-action results.
func (c *Controller) Tick(live []protocol.Action) (uint64, []game.ActionResult, error) {
	switch c.mode {
	case ModeRecording:
		return c.recordTick(live)
	case ModePlayback:
		return c.playbackTick(live)
	default:
		// Idle and finished sessions still run the simulation, just without
		// persistence: after a replay completes the session hands control
		// back to live input.
		tick, results := c.sim.Step(keepKnown(live))
		return tick, results, nil
	}
}

func (c *Controller) recordTick(live []protocol.Action) (uint64, []game.ActionResult, error) {
	batch := keepKnown(live)
	executed, results := c.sim.Step(batch)

	logged := keepReplayable(batch)
	if err := c.writer.WriteTimeslot(executed, logged); err != nil {
		return executed, results, err
	}
	c.observer.OnTick(executed, logged)

	now := c.sim.CurrentTick()
	if c.cfg.CheckpointPeriodTicks > 0 && now%uint64(c.cfg.CheckpointPeriodTicks) == 0 {
		if err := c.writeCheckpoint(now); err != nil {
			return executed, results, err
		}
	}
	return executed, results, nil
}

func (c *Controller) writeCheckpoint(tick uint64) error {
	root, err := snapshot.Build(tick, c.sim)
	if err != nil {
		return err
	}
	digest, err := root.HexDigest(c.algo)
	if err != nil {
		return err
	}
	tree, err := root.Tree(c.algo)
	if err != nil {
		return err
	}
	rel, err := checkpoint.Write(c.cfg.DataDir, c.replayID, tick, tree)
	if err != nil {
		return err
	}
	if err := c.writer.WriteCheckpoint(tick, digest, rel); err != nil {
		return err
	}
	c.lastCP = tick
	c.wroteCP = true
	c.observer.OnCheckpoint(tick, digest)
	if c.index != nil {
		c.index.RecordCheckpoint(indexdb.CheckpointRow{
			ReplayID: c.replayID,
			Tick:     tick,
			Digest:   digest,
			Path:     rel,
		})
	}
	c.logger.Printf("checkpoint tick=%d hash=%s", tick, digest)
	return nil
}

// StopRecording writes a final checkpoint for the current tick (unless one
// was just written) and closes the log.
func (c *Controller) StopRecording() error {
	if c.mode != ModeRecording {
		return fmt.Errorf("%s: not recording", protocol.ErrBadRequest)
	}
	tick := c.sim.CurrentTick()
	if tick > 0 && (!c.wroteCP || c.lastCP != tick) {
		if err := c.writeCheckpoint(tick); err != nil {
			_ = c.writer.Close()
			return err
		}
	}
	err := c.writer.Close()
	c.writer = nil
	c.mode = ModeIdle
	c.observer.OnFinished(ModeRecording, tick)
	c.logger.Printf("recording %s stopped at tick %d", c.replayID, tick)
	return err
}

func keepKnown(actions []protocol.Action) []protocol.Action {
	out := make([]protocol.Action, 0, len(actions))
	for _, a := range actions {
		if protocol.Known(a.Type) {
			out = append(out, a)
		}
	}
	return out
}

func keepReplayable(actions []protocol.Action) []protocol.Action {
	out := make([]protocol.Action, 0, len(actions))
	for _, a := range actions {
		if protocol.Replayable(a.Type) {
			out = append(out, a)
		}
	}
	return out
}

func keepControl(actions []protocol.Action) []protocol.Action {
	out := make([]protocol.Action, 0, len(actions))
	for _, a := range actions {
		if protocol.Control(a.Type) {
			out = append(out, a)
		}
	}
	return out
}
