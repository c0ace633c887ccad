package wire

import "testing"

func TestTagWireRoundTrip(t *testing.T) {
	w := NewWriter(0)
	WriteVarintField(w, 1, 42)
	WriteBoolField(w, 2, true)
	WriteI32Field(w, 3, 7)
	WriteLenField(w, 4, []byte("hello"))
	WritePackedU32Field(w, 5, []uint32{1, 2, 300})

	r := NewReader(w.Bytes())

	rec, ok, err := ReadRecord(r)
	if err != nil || !ok || rec.Field != 1 || rec.Type != Varint || rec.Varint != 42 {
		t.Fatalf("field 1: %+v, ok=%v, err=%v", rec, ok, err)
	}

	rec, ok, err = ReadRecord(r)
	if err != nil || !ok || rec.Field != 2 || rec.Varint != 1 {
		t.Fatalf("field 2: %+v, ok=%v, err=%v", rec, ok, err)
	}

	rec, ok, err = ReadRecord(r)
	if err != nil || !ok || rec.Field != 3 || rec.Type != I32 || rec.Varint != 7 {
		t.Fatalf("field 3: %+v, ok=%v, err=%v", rec, ok, err)
	}

	rec, ok, err = ReadRecord(r)
	if err != nil || !ok || rec.Field != 4 || string(rec.Bytes) != "hello" {
		t.Fatalf("field 4: %+v, ok=%v, err=%v", rec, ok, err)
	}

	rec, ok, err = ReadRecord(r)
	if err != nil || !ok || rec.Field != 5 {
		t.Fatalf("field 5: %+v, ok=%v, err=%v", rec, ok, err)
	}
	packed, err := DecodePackedU32(rec.Bytes)
	if err != nil {
		t.Fatalf("DecodePackedU32: %v", err)
	}
	if len(packed) != 3 || packed[0] != 1 || packed[1] != 2 || packed[2] != 300 {
		t.Fatalf("packed mismatch: %v", packed)
	}

	if _, ok, err := ReadRecord(r); err != nil || ok {
		t.Fatalf("expected clean end of input, got ok=%v err=%v", ok, err)
	}
}

func TestDefaultValuedFieldsOmitted(t *testing.T) {
	w := NewWriter(0)
	WriteVarintField(w, 1, 0)
	WriteBoolField(w, 2, false)
	WriteI32Field(w, 3, 0)
	WriteLenField(w, 4, nil)
	WritePackedU32Field(w, 5, nil)

	if w.Len() != 0 {
		t.Fatalf("expected no bytes written for all-default fields, got %d", w.Len())
	}
}

func TestUnrecognizedWireTypeErrors(t *testing.T) {
	w := NewWriter(0)
	WriteTag(w, 1, WireType(6))
	r := NewReader(w.Bytes())
	if _, _, err := ReadRecord(r); err == nil {
		t.Fatalf("expected error for unrecognized wire type")
	}
}
