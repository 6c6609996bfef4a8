// Package hashtree builds hierarchical state checksums. A Node wraps a name,
// a flat set of named fields and a set of named children; its digest covers
// the canonical encoding of its fields plus the digests of its children, with
// fields and children always visited in sorted name order. Two trees with the
// same canonical content digest identically no matter how they were built.
package hashtree

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/fnv"
	"sort"

	"gridspire.dev/internal/sim/canon"
)

// Algo selects the digest algorithm.
type Algo string

const (
	// AlgoSHA256 is the durable hash used in recorded replay files and any
	// cross-run comparison.
	AlgoSHA256 Algo = "sha256"
	// AlgoFNV128 is a faster non-cryptographic hash acceptable for
	// high-frequency intra-process desync checks only.
	AlgoFNV128 Algo = "fnv128a"
)

func (a Algo) new() (hash.Hash, error) {
	switch a {
	case AlgoSHA256, "":
		return sha256.New(), nil
	case AlgoFNV128:
		return fnv.New128a(), nil
	}
	return nil, fmt.Errorf("hashtree: unknown algo %q", string(a))
}

// ParseAlgo validates a configured algorithm name.
func ParseAlgo(s string) (Algo, error) {
	switch Algo(s) {
	case AlgoSHA256, AlgoFNV128:
		return Algo(s), nil
	case "":
		return AlgoSHA256, nil
	}
	return "", fmt.Errorf("hashtree: unknown algo %q", s)
}

// Node is one level of a hierarchical checksum tree. Child names are unique
// among siblings. A node caches its digest and invalidates the cache, up
// through its ancestors, on any field or child mutation.
type Node struct {
	name     string
	parent   *Node
	fields   map[string]any
	children map[string]*Node

	cached     []byte
	cachedAlgo Algo
}

// New returns a fresh root node.
func New(name string) *Node {
	return &Node{name: name}
}

// Name returns the node's identity among its siblings.
func (n *Node) Name() string { return n.name }

// AddField inserts or replaces a field. The value is canonicalized on entry;
// an unsupported value kind fails with canon.EncodingError.
func (n *Node) AddField(name string, v any) error {
	c, err := canon.Canonicalize(v)
	if err != nil {
		return fmt.Errorf("hashtree: field %s/%s: %w", n.name, name, err)
	}
	if n.fields == nil {
		n.fields = map[string]any{}
	}
	n.fields[name] = c
	n.invalidate()
	return nil
}

// Child returns the child with the given name, creating and attaching it if
// absent.
func (n *Node) Child(name string) *Node {
	if c, ok := n.children[name]; ok {
		return c
	}
	if n.children == nil {
		n.children = map[string]*Node{}
	}
	c := &Node{name: name, parent: n}
	n.children[name] = c
	n.invalidate()
	return c
}

// Field returns a field value and whether it is present.
func (n *Node) Field(name string) (any, bool) {
	v, ok := n.fields[name]
	return v, ok
}

// FieldNames returns the field names in sorted order.
func (n *Node) FieldNames() []string {
	names := make([]string, 0, len(n.fields))
	for k := range n.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ChildNames returns the child names in sorted order.
func (n *Node) ChildNames() []string {
	names := make([]string, 0, len(n.children))
	for k := range n.children {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ChildByName returns an attached child without creating one.
func (n *Node) ChildByName(name string) (*Node, bool) {
	c, ok := n.children[name]
	return c, ok
}

func (n *Node) leaf() bool { return len(n.children) == 0 }

func (n *Node) invalidate() {
	for p := n; p != nil; p = p.parent {
		if p.cached == nil {
			return
		}
		p.cached = nil
		p.cachedAlgo = ""
	}
}

// Digest returns the node's digest under the given algorithm, computing and
// caching it if needed. Computation is pure: it depends only on the canonical
// content, never on identity or insertion order.
func (n *Node) Digest(algo Algo) ([]byte, error) {
	if algo == "" {
		algo = AlgoSHA256
	}
	if n.cached != nil && n.cachedAlgo == algo {
		return n.cached, nil
	}

	h, err := algo.new()
	if err != nil {
		return nil, err
	}

	var buf []byte
	for _, fname := range n.FieldNames() {
		buf, err = canon.Append(buf, fname)
		if err != nil {
			return nil, err
		}
		buf, err = canon.Append(buf, n.fields[fname])
		if err != nil {
			return nil, fmt.Errorf("hashtree: field %s/%s: %w", n.name, fname, err)
		}
	}
	h.Write(buf)

	// Each child contributes its name plus its digest: renaming a child
	// changes the parent digest even when the subtree content is unchanged.
	for _, cname := range n.ChildNames() {
		nb, err := canon.Append(nil, cname)
		if err != nil {
			return nil, err
		}
		h.Write(nb)
		cd, err := n.children[cname].Digest(algo)
		if err != nil {
			return nil, err
		}
		h.Write(cd)
	}

	n.cached = h.Sum(nil)
	n.cachedAlgo = algo
	return n.cached, nil
}

// HexDigest returns the hex-encoded digest.
func (n *Node) HexDigest(algo Algo) (string, error) {
	d, err := n.Digest(algo)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(d), nil
}
