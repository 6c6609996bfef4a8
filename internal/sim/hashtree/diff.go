package hashtree

import (
	"sort"
	"strings"

	"gridspire.dev/internal/sim/canon"
)

// DivergenceKind classifies how two subtrees disagree.
type DivergenceKind string

const (
	// FieldsChanged: the node exists on both sides with differing field values.
	FieldsChanged DivergenceKind = "fields_changed"
	// OnlyInExpected: the subtree exists only in the expected tree.
	OnlyInExpected DivergenceKind = "only_in_expected"
	// OnlyInActual: the subtree exists only in the actual tree.
	OnlyInActual DivergenceKind = "only_in_actual"
	// DigestMismatch: digests differ but no field-level cause was found at
	// this node (the disagreement is structural).
	DigestMismatch DivergenceKind = "digest_mismatch"
)

// FieldDiff is a field-level value comparison at a divergent node. A nil side
// means the field is absent there.
type FieldDiff struct {
	Field    string `json:"field"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
}

// Divergence localizes one disagreement between an expected and an actual
// tree. Path runs from the root; leaf field data is carried for inspection.
type Divergence struct {
	Path           []string       `json:"path"`
	Kind           DivergenceKind `json:"kind"`
	ExpectedDigest string         `json:"expected_digest,omitempty"`
	ActualDigest   string         `json:"actual_digest,omitempty"`
	Fields         []FieldDiff    `json:"fields,omitempty"`
}

// String renders the divergence as a human-readable path like
// players/player_1/towers/tower_42.hp. The root name is dropped; the first
// differing field, if any, becomes the suffix.
func (d Divergence) String() string {
	p := d.Path
	if len(p) > 1 {
		p = p[1:]
	}
	s := strings.Join(p, "/")
	if len(d.Fields) > 0 {
		s += "." + d.Fields[0].Field
	}
	if d.Kind == OnlyInExpected || d.Kind == OnlyInActual {
		s += " (" + string(d.Kind) + ")"
	}
	return s
}

// Diff compares two trees and returns the minimal ordered list of divergent
// subtree paths. Matching root digests short-circuit to nil without any deep
// comparison. Traversal follows sorted child name order, so the output is
// deterministic for a given pair of trees.
func Diff(expected, actual *Node, algo Algo) ([]Divergence, error) {
	ed, err := expected.Digest(algo)
	if err != nil {
		return nil, err
	}
	ad, err := actual.Digest(algo)
	if err != nil {
		return nil, err
	}
	if string(ed) == string(ad) {
		return nil, nil
	}
	var out []Divergence
	if err := diffNodes(expected, actual, algo, []string{expected.name}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func diffNodes(expected, actual *Node, algo Algo, path []string, out *[]Divergence) error {
	ed, err := expected.Digest(algo)
	if err != nil {
		return err
	}
	ad, err := actual.Digest(algo)
	if err != nil {
		return err
	}
	if string(ed) == string(ad) {
		return nil
	}

	eh, _ := expected.HexDigest(algo)
	ah, _ := actual.HexDigest(algo)

	fields := diffFields(expected, actual)
	reported := false
	if len(fields) > 0 {
		*out = append(*out, Divergence{
			Path:           append([]string(nil), path...),
			Kind:           FieldsChanged,
			ExpectedDigest: eh,
			ActualDigest:   ah,
			Fields:         fields,
		})
		reported = true
	}

	names := unionSorted(expected.ChildNames(), actual.ChildNames())
	descended := false
	for _, name := range names {
		ec, eok := expected.ChildByName(name)
		ac, aok := actual.ChildByName(name)
		childPath := append(append([]string(nil), path...), name)
		switch {
		case eok && aok:
			before := len(*out)
			if err := diffNodes(ec, ac, algo, childPath, out); err != nil {
				return err
			}
			if len(*out) > before {
				descended = true
			}
		case eok:
			hx, _ := ec.HexDigest(algo)
			*out = append(*out, Divergence{
				Path:           childPath,
				Kind:           OnlyInExpected,
				ExpectedDigest: hx,
				Fields:         sideFields(ec, true),
			})
			descended = true
		default:
			hx, _ := ac.HexDigest(algo)
			*out = append(*out, Divergence{
				Path:         childPath,
				Kind:         OnlyInActual,
				ActualDigest: hx,
				Fields:       sideFields(ac, false),
			})
			descended = true
		}
	}

	// Digests disagree but neither fields nor children explain it here.
	if !reported && !descended {
		*out = append(*out, Divergence{
			Path:           append([]string(nil), path...),
			Kind:           DigestMismatch,
			ExpectedDigest: eh,
			ActualDigest:   ah,
		})
	}
	return nil
}

func diffFields(expected, actual *Node) []FieldDiff {
	var out []FieldDiff
	for _, name := range unionSorted(expected.FieldNames(), actual.FieldNames()) {
		ev, eok := expected.Field(name)
		av, aok := actual.Field(name)
		if eok && aok && canon.Equal(ev, av) {
			continue
		}
		out = append(out, FieldDiff{Field: name, Expected: ev, Actual: av})
	}
	return out
}

func sideFields(n *Node, expectedSide bool) []FieldDiff {
	var out []FieldDiff
	for _, name := range n.FieldNames() {
		v, _ := n.Field(name)
		fd := FieldDiff{Field: name}
		if expectedSide {
			fd.Expected = v
		} else {
			fd.Actual = v
		}
		out = append(out, fd)
	}
	return out
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		seen[s] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
