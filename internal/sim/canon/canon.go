// Package canon deterministically serializes structured values into byte
// sequences independent of insertion order or host representation. It is the
// encoding layer under every state digest: same canonical content, same bytes.
package canon

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// Vec2i is an integer grid position. Used for tower and creep placement.
type Vec2i struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// EncodingError reports a value whose kind the encoder does not support.
type EncodingError struct {
	Kind string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("canon: unsupported value kind: %s", e.Kind)
}

// Kind tags keep the byte stream unambiguous: two different value shapes can
// never encode to the same bytes.
const (
	tagBool   = 'b'
	tagInt    = 'i'
	tagString = 's'
	tagSeq    = 'l'
	tagMap    = 'm'
)

// Append encodes v onto dst and returns the extended slice.
//
// Mapping keys are sorted lexicographically; sequences keep their order and
// are length-prefixed; integers are fixed-width little-endian. Floats are
// floored to int64 before encoding: every numeric field entering a digest is
// quantized the same way, so platform rounding noise cannot leak in.
func Append(dst []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case bool:
		dst = append(dst, tagBool, boolByte(x))
	case int:
		dst = appendInt(dst, int64(x))
	case int32:
		dst = appendInt(dst, int64(x))
	case int64:
		dst = appendInt(dst, x)
	case uint32:
		dst = appendInt(dst, int64(x))
	case uint64:
		dst = appendInt(dst, int64(x))
	case float64:
		dst = appendInt(dst, int64(math.Floor(x)))
	case string:
		dst = append(dst, tagString)
		dst = appendU64(dst, uint64(len(x)))
		dst = append(dst, x...)
	case Vec2i:
		// Positions encode as plain {x, z} mappings so a value that has been
		// through a JSON round trip produces the same bytes.
		return Append(dst, map[string]any{"x": int64(x.X), "z": int64(x.Z)})
	case []any:
		dst = append(dst, tagSeq)
		dst = appendU64(dst, uint64(len(x)))
		for _, el := range x {
			var err error
			dst, err = Append(dst, el)
			if err != nil {
				return nil, err
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dst = append(dst, tagMap)
		dst = appendU64(dst, uint64(len(keys)))
		for _, k := range keys {
			dst = append(dst, tagString)
			dst = appendU64(dst, uint64(len(k)))
			dst = append(dst, k...)
			var err error
			dst, err = Append(dst, x[k])
			if err != nil {
				return nil, err
			}
		}
	default:
		return nil, &EncodingError{Kind: fmt.Sprintf("%T", v)}
	}
	return dst, nil
}

// Encode writes the canonical encoding of v to w.
func Encode(w io.Writer, v any) error {
	b, err := Append(nil, v)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Canonicalize reduces v to the closed canonical kind set: all integer
// variants become int64, floats are floored to int64, nested collections are
// canonicalized recursively. Applying it twice is a no-op.
func Canonicalize(v any) (any, error) {
	switch x := v.(type) {
	case bool, string, int64:
		return x, nil
	case Vec2i:
		return map[string]any{"x": int64(x.X), "z": int64(x.Z)}, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float64:
		return int64(math.Floor(x)), nil
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			c, err := Canonicalize(el)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			c, err := Canonicalize(el)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	default:
		return nil, &EncodingError{Kind: fmt.Sprintf("%T", v)}
	}
}

// Equal reports whether two values have identical canonical encodings.
func Equal(a, b any) bool {
	ab, err := Append(nil, a)
	if err != nil {
		return false
	}
	bb, err := Append(nil, b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

func appendInt(dst []byte, v int64) []byte {
	dst = append(dst, tagInt)
	return appendU64(dst, uint64(v))
}

func appendU64(dst []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(dst, tmp[:]...)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
