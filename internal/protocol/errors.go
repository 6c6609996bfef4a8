package protocol

const (
	// File layer.
	ErrIO    = "E_IO"
	ErrParse = "E_PARSE"

	// Encoding layer. A value handed to the canonical encoder had an
	// unsupported shape; programmer error in the snapshot field selection.
	ErrEncoding = "E_ENCODING"

	// Action layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrBlocked       = "E_BLOCKED"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrIO:            {},
	ErrParse:         {},
	ErrEncoding:      {},
	ErrBadRequest:    {},
	ErrNoResource:    {},
	ErrInvalidTarget: {},
	ErrBlocked:       {},
	ErrInternal:      {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
