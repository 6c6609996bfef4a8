package replay

import (
	"fmt"
	"path/filepath"

	"gridspire.dev/internal/persistence/actionlog"
	"gridspire.dev/internal/persistence/checkpoint"
	"gridspire.dev/internal/protocol"
	"gridspire.dev/internal/sim/game"
	"gridspire.dev/internal/sim/hashtree"
	"gridspire.dev/internal/sim/snapshot"
	"gridspire.dev/internal/sim/tuning"
)

// BeginPlayback loads a log and rebuilds a fresh simulation from its meta
// line. Malformed log lines are skipped and counted, never fatal.
func (c *Controller) BeginPlayback(logPath string) error {
	if c.mode != ModeIdle {
		return fmt.Errorf("%s: cannot play back in mode %s", protocol.ErrBadRequest, c.mode)
	}

	meta, entries, skipped, err := actionlog.ReadAll(logPath)
	if err != nil {
		return err
	}
	if meta.Version != protocol.Version {
		return fmt.Errorf("%s: log version %d, want %d", protocol.ErrParse, meta.Version, protocol.Version)
	}

	c.timeslots = make(map[uint64][]protocol.Action)
	c.checkpoints = make(map[uint64]*actionlog.Checkpoint)
	c.maxSlotTick = 0
	for _, e := range entries {
		switch {
		case e.Timeslot != nil:
			c.timeslots[e.Timeslot.Tick] = e.Timeslot.Actions
			if e.Timeslot.Tick > c.maxSlotTick {
				c.maxSlotTick = e.Timeslot.Tick
			}
		case e.Checkpoint != nil:
			c.checkpoints[e.Checkpoint.Tick] = e.Checkpoint
		}
	}

	c.sim = c.NewSim(meta.Seed, meta.Settings)
	c.meta = meta
	c.replayID = meta.ReplayID
	c.logDir = filepath.Dir(logPath)
	c.skipped = skipped
	c.reports = nil
	c.halted = false
	c.mode = ModePlayback

	if len(c.timeslots) == 0 {
		// An empty recording finishes immediately.
		c.finishPlayback()
		return nil
	}
	c.logger.Printf("playback %s seed=%d ticks=%d checkpoints=%d skipped=%d",
		c.replayID, meta.Seed, len(c.timeslots), len(c.checkpoints), skipped)
	return nil
}

func (c *Controller) playbackTick(live []protocol.Action) (uint64, []game.ActionResult, error) {
	tick := c.sim.CurrentTick()
	logged, ok := c.timeslots[tick]
	if !ok {
		c.finishPlayback()
		return tick, nil, nil
	}

	// Input lock: only control actions from the live batch reach the sim.
	batch := append(append([]protocol.Action{}, logged...), keepControl(live)...)
	executed, results := c.sim.Step(batch)
	c.observer.OnTick(executed, logged)

	now := c.sim.CurrentTick()
	if cp, ok := c.checkpoints[now]; ok {
		if err := c.verifyCheckpoint(now, cp); err != nil {
			return executed, results, err
		}
	}
	if c.mode == ModePlayback && now > c.maxSlotTick {
		c.finishPlayback()
	}
	return executed, results, nil
}

func (c *Controller) verifyCheckpoint(tick uint64, cp *actionlog.Checkpoint) error {
	root, err := snapshot.Build(tick, c.sim)
	if err != nil {
		return err
	}
	digest, err := root.HexDigest(c.algo)
	if err != nil {
		return err
	}
	if digest == cp.Hash {
		c.observer.OnCheckpoint(tick, digest)
		return nil
	}

	report := DivergenceReport{Tick: tick}
	expected := c.loadExpectedTree(cp)
	if expected != nil {
		divs, err := hashtree.Diff(expected, root, c.algo)
		if err != nil {
			return err
		}
		report.Divergences = divs
	}
	if len(report.Divergences) == 0 {
		// No tree file to pinpoint the difference; report the root mismatch.
		report.Divergences = []hashtree.Divergence{{
			Path:           []string{snapshot.RootName},
			Kind:           hashtree.DigestMismatch,
			ExpectedDigest: cp.Hash,
			ActualDigest:   digest,
		}}
	}

	c.reports = append(c.reports, report)
	c.observer.OnDivergence(report)
	if c.index != nil {
		c.index.RecordDivergences(c.replayID, tick, report.Divergences)
	}
	for _, d := range report.Divergences {
		c.logger.Printf("divergence tick=%d path=%s kind=%s", tick, d.String(), d.Kind)
	}
	if c.cfg.OnDivergence == tuning.OnDivergenceHalt {
		c.halted = true
		c.finishPlayback()
	}
	return nil
}

func (c *Controller) loadExpectedTree(cp *actionlog.Checkpoint) *hashtree.Node {
	if cp.File == "" {
		return nil
	}
	t, err := checkpoint.Read(filepath.Join(c.logDir, cp.File))
	if err != nil {
		c.logger.Printf("checkpoint file %s unreadable: %v", cp.File, err)
		return nil
	}
	n, err := hashtree.FromTree(t)
	if err != nil {
		c.logger.Printf("checkpoint file %s corrupt: %v", cp.File, err)
		return nil
	}
	return n
}

func (c *Controller) finishPlayback() {
	if c.mode != ModePlayback {
		return
	}
	c.mode = ModeFinished
	tick := c.sim.CurrentTick()
	c.observer.OnFinished(ModePlayback, tick)
	if c.halted {
		c.logger.Printf("playback %s halted at tick %d (%d divergent checkpoints)", c.replayID, tick, len(c.reports))
		return
	}
	c.logger.Printf("playback %s finished at tick %d (%d divergent checkpoints)", c.replayID, tick, len(c.reports))
}

// StopPlayback abandons an in-progress playback or dismisses a finished one.
// Either way the session returns to idle and the input lock is released.
func (c *Controller) StopPlayback() error {
	switch c.mode {
	case ModePlayback:
		// Early cancel: report the finish, then return to live play.
		c.observer.OnFinished(ModePlayback, c.sim.CurrentTick())
	case ModeFinished:
		// Dismissing a completed replay. OnFinished already fired.
	default:
		return fmt.Errorf("%s: not playing back", protocol.ErrBadRequest)
	}
	c.mode = ModeIdle
	return nil
}

// Run drives playback to completion (or halt) and returns the collected
// divergence reports.
func (c *Controller) Run() ([]DivergenceReport, error) {
	for c.mode == ModePlayback {
		if _, _, err := c.Tick(nil); err != nil {
			return c.reports, err
		}
	}
	return c.reports, nil
}
