// Package checkpoint persists hierarchical checksum trees, one file per
// (replay id, tick). Files are written with stable key ordering so two runs
// producing identical state produce byte-identical files.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gridspire.dev/internal/protocol"
	"gridspire.dev/internal/sim/hashtree"
)

// RelPath returns a checkpoint file path relative to the log's directory.
func RelPath(replayID string, tick uint64) string {
	return filepath.Join("checkpoints", replayID, fmt.Sprintf("tick-%09d.json", tick))
}

// Write serializes the tree under the log directory and returns the relative
// path recorded in the log's checkpoint line.
func Write(logDir, replayID string, tick uint64, t *hashtree.Tree) (string, error) {
	rel := RelPath(replayID, tick)
	full := filepath.Join(logDir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("%s: %w", protocol.ErrIO, err)
	}
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("%s: %w", protocol.ErrIO, err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(full, b, 0o644); err != nil {
		return "", fmt.Errorf("%s: %w", protocol.ErrIO, err)
	}
	return rel, nil
}

// Read loads a checkpoint tree file.
func Read(path string) (*hashtree.Tree, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", protocol.ErrIO, err)
	}
	var t hashtree.Tree
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", protocol.ErrParse, filepath.Base(path), err)
	}
	return &t, nil
}
