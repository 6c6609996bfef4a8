package hashtree

import (
	"fmt"
	"sort"
)

// Tree is the serialized form of a Node for checkpoint files. Children are
// sorted by name and fields marshal with sorted keys, so two runs producing
// identical state also produce byte-identical files.
type Tree struct {
	Name     string         `json:"name"`
	Fields   map[string]any `json:"fields,omitempty"`
	Children []*Tree        `json:"children,omitempty"`
	Hash     string         `json:"hash"`
}

// Tree exports the node, its fields and its children recursively, stamping
// each level with its hex digest under the given algorithm.
func (n *Node) Tree(algo Algo) (*Tree, error) {
	hx, err := n.HexDigest(algo)
	if err != nil {
		return nil, err
	}
	t := &Tree{Name: n.name, Hash: hx}
	if len(n.fields) > 0 {
		t.Fields = make(map[string]any, len(n.fields))
		for k, v := range n.fields {
			t.Fields[k] = v
		}
	}
	if len(n.children) > 0 {
		names := n.ChildNames()
		t.Children = make([]*Tree, 0, len(names))
		for _, cname := range names {
			ct, err := n.children[cname].Tree(algo)
			if err != nil {
				return nil, err
			}
			t.Children = append(t.Children, ct)
		}
	}
	return t, nil
}

// FromTree rebuilds a Node from its serialized form. Numeric fields arrive
// from JSON as float64 and are re-canonicalized on entry, so a round-tripped
// tree digests identically to the original.
func FromTree(t *Tree) (*Node, error) {
	if t == nil {
		return nil, fmt.Errorf("hashtree: nil tree")
	}
	n := New(t.Name)
	if err := fillFromTree(n, t); err != nil {
		return nil, err
	}
	return n, nil
}

func fillFromTree(n *Node, t *Tree) error {
	fnames := make([]string, 0, len(t.Fields))
	for k := range t.Fields {
		fnames = append(fnames, k)
	}
	sort.Strings(fnames)
	for _, k := range fnames {
		if err := n.AddField(k, t.Fields[k]); err != nil {
			return err
		}
	}
	for _, ct := range t.Children {
		if ct == nil {
			continue
		}
		if err := fillFromTree(n.Child(ct.Name), ct); err != nil {
			return err
		}
	}
	return nil
}
