package canon

import (
	"bytes"
	"errors"
	"testing"
)

func TestAppend_MapKeyOrderIndependent(t *testing.T) {
	// Build the same mapping with keys inserted in opposite orders.
	m1 := map[string]any{}
	m1["a"] = 1
	m1["b"] = 2

	m2 := map[string]any{}
	m2["b"] = 2
	m2["a"] = 1

	b1, err := Append(nil, m1)
	if err != nil {
		t.Fatalf("encode m1: %v", err)
	}
	b2, err := Append(nil, m2)
	if err != nil {
		t.Fatalf("encode m2: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("insertion order leaked into encoding:\n%x\n%x", b1, b2)
	}
}

func TestAppend_SequenceOrderSignificant(t *testing.T) {
	b1, err := Append(nil, []any{"a", "b"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b2, err := Append(nil, []any{"b", "a"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.Equal(b1, b2) {
		t.Fatal("sequence order must be significant")
	}
}

func TestAppend_FloatsFloored(t *testing.T) {
	bf, err := Append(nil, 41.9)
	if err != nil {
		t.Fatalf("encode float: %v", err)
	}
	bi, err := Append(nil, int64(41))
	if err != nil {
		t.Fatalf("encode int: %v", err)
	}
	if !bytes.Equal(bf, bi) {
		t.Fatalf("41.9 should encode as floor(41.9)=41:\n%x\n%x", bf, bi)
	}
}

func TestAppend_IntVariantsConverge(t *testing.T) {
	b1, _ := Append(nil, 7)
	b2, _ := Append(nil, int64(7))
	b3, _ := Append(nil, int32(7))
	if !bytes.Equal(b1, b2) || !bytes.Equal(b2, b3) {
		t.Fatal("int variants must share one encoding")
	}
}

func TestAppend_KindTagsDisambiguate(t *testing.T) {
	bs, _ := Append(nil, "")
	bl, _ := Append(nil, []any{})
	if bytes.Equal(bs, bl) {
		t.Fatal("empty string and empty sequence must encode differently")
	}
}

func TestAppend_Vec2iEncodesAsMapping(t *testing.T) {
	// A position must encode exactly like its {x, z} mapping form so values
	// rebuilt from JSON checkpoints digest identically.
	bv, err := Append(nil, Vec2i{X: 4, Z: -2})
	if err != nil {
		t.Fatalf("encode vec: %v", err)
	}
	bm, err := Append(nil, map[string]any{"x": int64(4), "z": int64(-2)})
	if err != nil {
		t.Fatalf("encode map: %v", err)
	}
	if !bytes.Equal(bv, bm) {
		t.Fatalf("vec and mapping encodings differ:\n%x\n%x", bv, bm)
	}
}

func TestAppend_UnsupportedKind(t *testing.T) {
	type opaque struct{ n int }
	_, err := Append(nil, opaque{n: 1})
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("want EncodingError, got %v", err)
	}
	if encErr.Kind == "" {
		t.Fatal("EncodingError must name the offending kind")
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	in := map[string]any{
		"gold":  12.7,
		"tags":  []any{"a", 3},
		"alive": true,
		"pos":   Vec2i{X: 4, Z: -2},
	}
	once, err := Canonicalize(in)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	twice, err := Canonicalize(once)
	if err != nil {
		t.Fatalf("canonicalize twice: %v", err)
	}
	if !Equal(once, twice) {
		t.Fatal("canonicalize must be idempotent")
	}
	m := once.(map[string]any)
	if got, ok := m["gold"].(int64); !ok || got != 12 {
		t.Fatalf("float field not floored to int64: %#v", m["gold"])
	}
}
