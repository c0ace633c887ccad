// Package envelope implements the value-envelope codec: tagging a value
// with an encoding discriminator (engine-structured / little-endian
// 64-bit counter / raw bytes) and round-tripping it through the
// underlying key-value engine.
package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Encoding identifies how Data should be interpreted.
type Encoding int32

const (
	EncodingUnspecified Encoding = 0
	EncodingV8          Encoding = 1 // engine-defined structured blob
	EncodingLE64        Encoding = 2 // 8-byte little-endian counter
	EncodingBytes       Encoding = 3 // opaque raw bytes
)

// Value is the wire-level value envelope: an encoding tag plus its
// associated bytes.
type Value struct {
	Data     []byte
	Encoding Encoding
}

var (
	// ErrBadLE64Size is returned when an LE64 envelope's data isn't
	// exactly 8 bytes.
	ErrBadLE64Size = errors.New("envelope: LE64 value must be exactly 8 bytes")
	// ErrUnknownEncoding is returned for any encoding other than the
	// three recognized discriminators.
	ErrUnknownEncoding = errors.New("envelope: unknown value encoding")
)

// Counter interprets an LE64 envelope as a little-endian uint64 counter.
func (v Value) Counter() (uint64, error) {
	if v.Encoding != EncodingLE64 {
		return 0, fmt.Errorf("envelope: counter requested on non-LE64 value (encoding=%d)", v.Encoding)
	}
	if len(v.Data) != 8 {
		return 0, ErrBadLE64Size
	}
	return binary.LittleEndian.Uint64(v.Data), nil
}

// LE64 builds an LE64-encoded envelope from a uint64 counter.
func LE64(v uint64) Value {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return Value{Data: b, Encoding: EncodingLE64}
}

// Bytes builds a BYTES-encoded envelope from opaque data.
func Bytes(b []byte) Value {
	return Value{Data: b, Encoding: EncodingBytes}
}

// V8 builds a V8-encoded envelope from an already-serialized structured
// blob. The relay never inspects this payload itself; it is produced
// and consumed exclusively by the engine's structured serializer.
func V8(b []byte) Value {
	return Value{Data: b, Encoding: EncodingV8}
}

// Validate checks the invariants from §3: LE64 must carry exactly 8
// bytes; BYTES and V8 are unconstrained in size but the encoding itself
// must be one of the three recognized discriminators.
func Validate(v Value) error {
	switch v.Encoding {
	case EncodingBytes, EncodingV8:
		return nil
	case EncodingLE64:
		if len(v.Data) != 8 {
			return ErrBadLE64Size
		}
		return nil
	default:
		return ErrUnknownEncoding
	}
}
