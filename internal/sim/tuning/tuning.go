// Package tuning loads the replay/verification session configuration.
package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	OnDivergenceWarn = "warn"
	OnDivergenceHalt = "halt"
)

type Tuning struct {
	// CheckpointPeriodTicks is the interval between hierarchical checksum
	// snapshots during recording and verification during playback.
	CheckpointPeriodTicks int `yaml:"checkpoint_period_ticks"`

	// HashAlgo selects the digest algorithm: "sha256" (durable, written to
	// replay files) or "fnv128a" (fast, intra-process checks only).
	HashAlgo string `yaml:"hash_algo"`

	// OnDivergence picks what playback does when a checkpoint comparison
	// finds differences: "warn" keeps the simulation running so the operator
	// can see where it diverges further, "halt" stops playback at the
	// divergent tick.
	OnDivergence string `yaml:"on_divergence"`

	// DataDir is the root directory for logs, checkpoints and archives.
	DataDir string `yaml:"data_dir"`
}

func defaults() Tuning {
	return Tuning{
		CheckpointPeriodTicks: 300,
		HashAlgo:              "sha256",
		OnDivergence:          OnDivergenceWarn,
		DataDir:               "./data",
	}
}

// Load reads a tuning file; an empty path returns defaults.
func Load(path string) (Tuning, error) {
	t := defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	d := defaults()
	if t.CheckpointPeriodTicks <= 0 {
		t.CheckpointPeriodTicks = d.CheckpointPeriodTicks
	}
	if t.HashAlgo == "" {
		t.HashAlgo = d.HashAlgo
	}
	if t.OnDivergence == "" {
		t.OnDivergence = d.OnDivergence
	}
	if t.DataDir == "" {
		t.DataDir = d.DataDir
	}
}

func (t *Tuning) Validate() error {
	switch t.HashAlgo {
	case "sha256", "fnv128a":
	default:
		return fmt.Errorf("unknown hash_algo %q", t.HashAlgo)
	}
	switch t.OnDivergence {
	case OnDivergenceWarn, OnDivergenceHalt:
	default:
		return fmt.Errorf("unknown on_divergence %q", t.OnDivergence)
	}
	return nil
}
