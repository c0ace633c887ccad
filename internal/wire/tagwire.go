package wire

import "fmt"

// WireType identifies how a field's payload is framed on the wire.
type WireType uint8

const (
	Varint WireType = 0
	I64    WireType = 1
	Len    WireType = 2
	SGroup WireType = 3
	EGroup WireType = 4
	I32    WireType = 5
)

// Record is one decoded tag-length-value entry from a message stream.
type Record struct {
	Field uint32
	Type  WireType
	// Varint holds the decoded value for Varint/I64/I32 records (I64/I32
	// are sign/zero-extended into the low bits as read).
	Varint uint64
	// Bytes holds the payload for Len records.
	Bytes []byte
}

// decodeErrorf builds a decode error annotated with the field/wire type.
func decodeErrorf(format string, args ...any) error {
	return fmt.Errorf("wire: "+format, args...)
}

// ReadRecord decodes the next tag-length-value record from r. It returns
// (Record{}, false, nil) at a clean end of input, or an error if the
// stream is truncated mid-record or carries an unrecognized wire type.
func ReadRecord(r *Reader) (Record, bool, error) {
	if r.Len() == 0 {
		return Record{}, false, nil
	}
	tag, err := r.ReadVarU64LE()
	if err != nil {
		return Record{}, false, err
	}
	field := uint32(tag >> 3)
	wt := WireType(tag & 0x7)

	switch wt {
	case Varint:
		v, err := r.ReadVarU64LE()
		if err != nil {
			return Record{}, false, err
		}
		return Record{Field: field, Type: wt, Varint: v}, true, nil
	case I64:
		v, err := r.ReadU64LE()
		if err != nil {
			return Record{}, false, err
		}
		return Record{Field: field, Type: wt, Varint: v}, true, nil
	case I32:
		v, err := r.ReadU32LE()
		if err != nil {
			return Record{}, false, err
		}
		return Record{Field: field, Type: wt, Varint: uint64(v)}, true, nil
	case Len:
		n, err := r.ReadVarU64LE()
		if err != nil {
			return Record{}, false, err
		}
		b, err := r.ReadFull(int(n))
		if err != nil {
			return Record{}, false, err
		}
		return Record{Field: field, Type: wt, Bytes: b}, true, nil
	case SGroup, EGroup:
		// Accepted but payload-less: nothing further to consume.
		return Record{Field: field, Type: wt}, true, nil
	default:
		return Record{}, false, decodeErrorf("field %d: unrecognized wire type %d", field, wt)
	}
}

// RequireType fails decoding if rec isn't the wire type the caller's
// schema declares for this field.
func RequireType(rec Record, want WireType) error {
	if rec.Type != want {
		return decodeErrorf("field %d: expected wire type %d, got %d", rec.Field, want, rec.Type)
	}
	return nil
}

// WriteTag appends a field tag (field number + wire type) as a varint.
func WriteTag(w *Writer, field uint32, wt WireType) {
	w.WriteVarU64LE(uint64(field)<<3 | uint64(wt))
}

// WriteVarintField appends a Varint-typed field, value v, unless v is
// the default (zero) — per the encode contract, default-valued fields
// are omitted entirely.
func WriteVarintField(w *Writer, field uint32, v uint64) {
	if v == 0 {
		return
	}
	WriteTag(w, field, Varint)
	w.WriteVarU64LE(v)
}

// WriteBoolField appends a Varint-typed boolean field; false (the
// default) is omitted.
func WriteBoolField(w *Writer, field uint32, v bool) {
	if !v {
		return
	}
	WriteTag(w, field, Varint)
	w.WriteVarU64LE(1)
}

// WriteI32Field appends an I32-typed field, omitted when v == 0.
func WriteI32Field(w *Writer, field uint32, v uint32) {
	if v == 0 {
		return
	}
	WriteTag(w, field, I32)
	w.WriteU32LE(v)
}

// WriteLenField appends a Len-typed field (length-prefixed payload),
// omitted when b is empty.
func WriteLenField(w *Writer, field uint32, b []byte) {
	if len(b) == 0 {
		return
	}
	WriteTag(w, field, Len)
	w.WriteVarU64LE(uint64(len(b)))
	w.WriteBytes(b)
}

// WritePackedU32Field appends a repeated uint32 field in packed form:
// a single Len record whose payload is the concatenation of each
// element's varint encoding. Omitted when vs is empty.
func WritePackedU32Field(w *Writer, field uint32, vs []uint32) {
	if len(vs) == 0 {
		return
	}
	inner := NewWriter(len(vs) * 2)
	for _, v := range vs {
		inner.WriteVarU64LE(uint64(v))
	}
	WriteLenField(w, field, inner.Bytes())
}

// DecodePackedU32 decodes a packed-varint uint32 repeated field payload.
func DecodePackedU32(payload []byte) ([]uint32, error) {
	r := NewReader(payload)
	var out []uint32
	for r.Len() > 0 {
		v, err := r.ReadVarU64LE()
		if err != nil {
			return nil, err
		}
		out = append(out, uint32(v))
	}
	return out, nil
}
