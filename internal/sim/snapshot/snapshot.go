// Package snapshot walks live simulation state through a read-only registry
// and produces a hashtree representing the state at a given tick. The walk is
// a pure read; it never mutates simulation state, and must run on the
// simulation goroutine (entity state carries no synchronization of its own).
package snapshot

import (
	"fmt"
	"sort"

	"gridspire.dev/internal/sim/hashtree"
)

// RootName is the name of every snapshot tree's root node.
const RootName = "game_state"

// GlobalCategory holds seed, RNG position and other non-entity state.
const GlobalCategory = "global"

// Registry is the capability set the builder needs from a simulation:
// list-by-category, lookup-by-id, read-fields. Entity ids are stable
// identifiers, never transient addresses. Field values must already be
// integer-quantized; the canonical encoder floors any float that slips
// through.
type Registry interface {
	// Categories returns the fixed entity category set in its fixed order.
	Categories() []string
	// EntityIDs lists the stable ids present in a category.
	EntityIDs(category string) []string
	// EntityFields reads the fixed observable field set of one entity.
	EntityFields(category, id string) map[string]any
	// GlobalFields reads non-entity determinism-relevant state (seed, RNG
	// draw position, wave level, id counters).
	GlobalFields() map[string]any
}

// Build produces the checksum tree for the registry's current state.
// Every category appears as a child even when empty, so an empty category
// still has a well-defined, stable digest. Entities attach sorted by id.
func Build(tick uint64, reg Registry) (*hashtree.Node, error) {
	root := hashtree.New(RootName)
	if err := root.AddField("tick", tick); err != nil {
		return nil, err
	}

	global := root.Child(GlobalCategory)
	if err := addFieldsSorted(global, reg.GlobalFields()); err != nil {
		return nil, fmt.Errorf("snapshot: global: %w", err)
	}

	for _, cat := range reg.Categories() {
		cn := root.Child(cat)
		ids := append([]string(nil), reg.EntityIDs(cat)...)
		sort.Strings(ids)
		for _, id := range ids {
			en := cn.Child(id)
			if err := addFieldsSorted(en, reg.EntityFields(cat, id)); err != nil {
				return nil, fmt.Errorf("snapshot: %s/%s: %w", cat, id, err)
			}
		}
	}
	return root, nil
}

func addFieldsSorted(n *hashtree.Node, fields map[string]any) error {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := n.AddField(k, fields[k]); err != nil {
			return err
		}
	}
	return nil
}
