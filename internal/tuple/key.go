// Package tuple implements the order-preserving key codec: an ordered
// sequence of typed KeyParts encoded so that byte-wise comparison of the
// encoded form matches the type-aware ordering of the decoded parts.
package tuple

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

// Type discriminates a KeyPart's kind.
type Type uint8

const (
	TypeBytes Type = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
)

// Part is one typed element of a Key. Exactly one of the fields is
// meaningful, selected by Kind.
type Part struct {
	Kind  Type
	Bytes []byte   // TypeBytes
	Str   string   // TypeString
	Int   *big.Int // TypeInt, arbitrary precision
	Float float64  // TypeFloat
	Bool  bool     // TypeBool
}

func Bytes(b []byte) Part    { return Part{Kind: TypeBytes, Bytes: b} }
func String(s string) Part   { return Part{Kind: TypeString, Str: s} }
func Int(i int64) Part       { return Part{Kind: TypeInt, Int: big.NewInt(i)} }
func BigInt(i *big.Int) Part { return Part{Kind: TypeInt, Int: i} }
func Float(f float64) Part   { return Part{Kind: TypeFloat, Float: f} }
func Bool(b bool) Part       { return Part{Kind: TypeBool, Bool: b} }

// Key is an ordered sequence of typed parts.
type Key []Part

// Mode marks a Key as a range boundary: exact, or the smallest/largest
// key sharing the key's parts as a prefix.
type Mode int8

const (
	ModeExact Mode = 0
	ModeAfter Mode = 1
	ModeBefore Mode = -1
)

// RangeKey is a Key plus a boundary Mode, used only at range endpoints.
type RangeKey struct {
	Key  Key
	Mode Mode
}

const (
	tagBytes        = 0x01
	tagString       = 0x02
	tagIntZero      = 0x14
	tagIntSmallNeg  = 0x0B // ^n (1 byte) + n-byte inverted magnitude, n > 8
	tagIntSmallPos  = 0x1D // n (1 byte) + n-byte magnitude, n > 8
	tagFloat        = 0x21
	tagFalse        = 0x26
	tagTrue         = 0x27
	rangeAfterByte  = 0x00
	rangeBeforeByte = 0xFF
)

// maxSmallIntBytes is the largest magnitude size that packs into the
// tag byte itself (tagIntZero ± n, n in [1,8]).
const maxSmallIntBytes = 8

// maxIntMagnitudeBytes bounds arbitrary-precision integer magnitudes;
// exceeding it is a RangeError per §4.4's integer size limit.
const maxIntMagnitudeBytes = 255

var (
	ErrTruncated       = errors.New("tuple: truncated encoding")
	ErrBadTag          = errors.New("tuple: unrecognized type tag")
	ErrUnterminated    = errors.New("tuple: unterminated byte run")
	ErrMagnitudeTooBig = errors.New("tuple: integer magnitude exceeds 255 bytes")
	ErrRangeByteUnexpected = errors.New("tuple: trailing range byte without allowRange")
)

// Encode serializes k as a concatenation of self-delimited part encodings.
func Encode(k Key) ([]byte, error) {
	var out []byte
	for _, p := range k {
		enc, err := encodePart(p)
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return out, nil
}

func encodePart(p Part) ([]byte, error) {
	switch p.Kind {
	case TypeBytes:
		return append([]byte{tagBytes}, escapeNulls(p.Bytes)...), nil
	case TypeString:
		return append([]byte{tagString}, escapeNulls([]byte(p.Str))...), nil
	case TypeInt:
		return encodeInt(p.Int)
	case TypeFloat:
		return append([]byte{tagFloat}, encodeFloat(p.Float)...), nil
	case TypeBool:
		if p.Bool {
			return []byte{tagTrue}, nil
		}
		return []byte{tagFalse}, nil
	default:
		return nil, fmt.Errorf("tuple: unknown part kind %d", p.Kind)
	}
}

// escapeNulls null-escapes a byte run: every 0x00 is followed by 0xFF,
// and the run is terminated by a single 0x00 with no following 0xFF.
func escapeNulls(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	for _, c := range b {
		out = append(out, c)
		if c == 0x00 {
			out = append(out, 0xFF)
		}
	}
	out = append(out, 0x00)
	return out
}

// unescapeNulls reads a null-escaped byte run starting at r's current
// position and returns the decoded bytes with the cursor advanced past
// the terminator. When allowRange is set, a 0xFF that is the final byte
// of the buffer is a range marker, not an escape, so the 0x00 before it
// terminates the run.
func unescapeNulls(r *cursor, allowRange bool) ([]byte, error) {
	var out []byte
	for {
		b, ok := r.next()
		if !ok {
			return nil, ErrUnterminated
		}
		if b != 0x00 {
			out = append(out, b)
			continue
		}
		// saw 0x00: peek for the 0xFF escape
		nb, ok := r.peek()
		if ok && nb == 0xFF && !(allowRange && r.remaining() == 1) {
			out = append(out, 0x00)
			r.next()
			continue
		}
		// unescaped 0x00 terminates the run
		return out, nil
	}
}

func encodeInt(v *big.Int) ([]byte, error) {
	if v.Sign() == 0 {
		return []byte{tagIntZero}, nil
	}
	mag := new(big.Int).Abs(v).Bytes()
	if len(mag) > maxIntMagnitudeBytes {
		return nil, ErrMagnitudeTooBig
	}
	n := len(mag)
	if n <= maxSmallIntBytes {
		padded := make([]byte, n)
		copy(padded, mag)
		if v.Sign() < 0 {
			out := make([]byte, 1+n)
			out[0] = byte(tagIntZero - n)
			for i, b := range padded {
				out[1+i] = ^b
			}
			return out, nil
		}
		out := make([]byte, 1+n)
		out[0] = byte(tagIntZero + n)
		copy(out[1:], padded)
		return out, nil
	}
	// large integer: 1-byte tag, 1-byte length, n-byte magnitude
	if v.Sign() < 0 {
		out := make([]byte, 2+n)
		out[0] = tagIntSmallNeg
		out[1] = byte(^byte(n))
		for i, b := range mag {
			out[2+i] = ^b
		}
		return out, nil
	}
	out := make([]byte, 2+n)
	out[0] = tagIntSmallPos
	out[1] = byte(n)
	copy(out[2:], mag)
	return out, nil
}

// canonicalQuietNaNBits is the canonical quiet-NaN bit pattern used to
// collate all NaN inputs together regardless of payload.
const canonicalQuietNaNBits uint64 = 0x7FF8000000000000

func encodeFloat(f float64) []byte {
	bits := math.Float64bits(f)
	if math.IsNaN(f) {
		// Collate every NaN input above +Inf regardless of its original
		// sign or payload: canonicalize to one fixed, positive-signed bit
		// pattern before the ordering XOR below.
		bits = canonicalQuietNaNBits
	}
	if bits&(1<<63) != 0 {
		// negative (sign bit set): invert every bit
		bits = ^bits
	} else {
		// non-negative: flip only the sign bit
		bits ^= 1 << 63
	}
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[7-i] = byte(bits >> (8 * uint(i)))
	}
	return out
}

func decodeFloat(b []byte) float64 {
	var bits uint64
	for i := 0; i < 8; i++ {
		bits = bits<<8 | uint64(b[i])
	}
	if bits&(1<<63) != 0 {
		// sign bit set post-XOR means the original was non-negative
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

// cursor is a minimal byte-at-a-time reader used internally by the
// tuple decoder (distinct from wire.Reader: tuple decoding needs
// single-byte peek/next, not the message-level primitives).
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) next() (byte, bool) {
	if c.pos >= len(c.buf) {
		return 0, false
	}
	b := c.buf[c.pos]
	c.pos++
	return b, true
}

func (c *cursor) peek() (byte, bool) {
	if c.pos >= len(c.buf) {
		return 0, false
	}
	return c.buf[c.pos], true
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

// DecodeOptions controls range-endpoint handling during Decode.
type DecodeOptions struct {
	// AllowRange permits a trailing 0x00/0xFF range marker byte. Without
	// it, such a byte is a decode error.
	AllowRange bool
}

// Decode parses buf into a RangeKey. When opts.AllowRange is false the
// returned Mode is always ModeExact and any trailing marker byte is a
// decode error.
func Decode(buf []byte, opts DecodeOptions) (RangeKey, error) {
	c := &cursor{buf: buf}
	var parts Key
	mode := ModeExact

	for c.remaining() > 0 {
		tagPos := c.pos
		tag, ok := c.next()
		if !ok {
			break
		}

		switch {
		case tag == tagBytes:
			b, err := unescapeNulls(c, opts.AllowRange)
			if err != nil {
				return RangeKey{}, err
			}
			parts = append(parts, Bytes(b))
		case tag == tagString:
			b, err := unescapeNulls(c, opts.AllowRange)
			if err != nil {
				return RangeKey{}, err
			}
			parts = append(parts, String(string(b)))
		case tag == tagIntZero:
			parts = append(parts, BigInt(big.NewInt(0)))
		case tag > tagIntZero && int(tag)-int(tagIntZero) <= maxSmallIntBytes:
			n := int(tag) - tagIntZero
			mag, err := c.readN(n)
			if err != nil {
				return RangeKey{}, err
			}
			parts = append(parts, BigInt(new(big.Int).SetBytes(mag)))
		case tag < tagIntZero && int(tagIntZero)-int(tag) <= maxSmallIntBytes:
			n := tagIntZero - int(tag)
			mag, err := c.readN(n)
			if err != nil {
				return RangeKey{}, err
			}
			inv := invertBytes(mag)
			v := new(big.Int).SetBytes(inv)
			v.Neg(v)
			parts = append(parts, BigInt(v))
		case tag == tagIntSmallPos:
			nb, ok := c.next()
			if !ok {
				return RangeKey{}, ErrTruncated
			}
			mag, err := c.readN(int(nb))
			if err != nil {
				return RangeKey{}, err
			}
			parts = append(parts, BigInt(new(big.Int).SetBytes(mag)))
		case tag == tagIntSmallNeg:
			nb, ok := c.next()
			if !ok {
				return RangeKey{}, ErrTruncated
			}
			n := int(^byte(nb))
			mag, err := c.readN(n)
			if err != nil {
				return RangeKey{}, err
			}
			inv := invertBytes(mag)
			v := new(big.Int).SetBytes(inv)
			v.Neg(v)
			parts = append(parts, BigInt(v))
		case tag == tagFloat:
			b, err := c.readN(8)
			if err != nil {
				return RangeKey{}, err
			}
			parts = append(parts, Float(decodeFloat(b)))
		case tag == tagFalse:
			parts = append(parts, Bool(false))
		case tag == tagTrue:
			parts = append(parts, Bool(true))
		case tag == rangeAfterByte || tag == rangeBeforeByte:
			if !opts.AllowRange {
				return RangeKey{}, ErrRangeByteUnexpected
			}
			if tag == rangeAfterByte {
				mode = ModeAfter
			} else {
				mode = ModeBefore
			}
			// any remaining bytes after a range marker are ignored
			c.pos = len(c.buf)
			_ = tagPos
		default:
			return RangeKey{}, ErrBadTag
		}
	}

	return RangeKey{Key: parts, Mode: mode}, nil
}

func (c *cursor) readN(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, ErrTruncated
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func invertBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = ^c
	}
	return out
}

// WithEmptyByteSuffix returns a copy of k with an empty byte-string part
// appended — the "after" promotion described in §4.6.1: the
// lexicographically-smallest key strictly greater than any key sharing
// k as a prefix.
func WithEmptyByteSuffix(k Key) Key {
	out := make(Key, len(k), len(k)+1)
	copy(out, k)
	return append(out, Bytes(nil))
}
