package relay

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Ap3pp3rs94/kvrelay/internal/engine"
)

var errUnsupportedStartMode = errors.New("relay: range start may not use the before selector")

// versionstampRawBytes decodes the engine's hex versionstamp into the
// wire format's raw 10 bytes (§3: "opaque 10-byte value treated as hex
// on the engine boundary, raw bytes on the wire"). An empty
// versionstamp (no commit yet) decodes to nil.
func versionstampRawBytes(vs engine.Versionstamp) ([]byte, error) {
	if vs == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(string(vs))
	if err != nil {
		return nil, fmt.Errorf("relay: bad versionstamp hex: %w", err)
	}
	if len(b) != 10 {
		return nil, fmt.Errorf("relay: versionstamp must be 10 bytes, got %d", len(b))
	}
	return b, nil
}

// versionstampFromRawBytes encodes the wire format's raw bytes into the
// engine's hex versionstamp representation. An empty slice means "no
// entry" per §4.6.2's Check semantics.
func versionstampFromRawBytes(b []byte) *engine.Versionstamp {
	if len(b) == 0 {
		return nil
	}
	vs := engine.Versionstamp(hex.EncodeToString(b))
	return &vs
}
