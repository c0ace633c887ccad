package tuple

import (
	"bytes"
	"math"
	"math/big"
	"testing"
)

func mustEncode(t *testing.T, k Key) []byte {
	t.Helper()
	b, err := Encode(k)
	if err != nil {
		t.Fatalf("Encode(%v): %v", k, err)
	}
	return b
}

func TestRoundTrip(t *testing.T) {
	cases := []Key{
		{Bytes([]byte("abc"))},
		{String("hello")},
		{Int(0)},
		{Int(1)},
		{Int(-1)},
		{Int(255)},
		{Int(-255)},
		{BigInt(new(big.Int).Lsh(big.NewInt(1), 100))},
		{BigInt(new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 100)))},
		{Float(3.14)},
		{Float(-3.14)},
		{Float(0)},
		{Float(math.Inf(1))},
		{Bool(true)},
		{Bool(false)},
		{String("a"), Int(1), Bool(true)},
		{Bytes([]byte{0x00, 0x01, 0x00})},
	}

	for _, k := range cases {
		enc := mustEncode(t, k)
		rk, err := Decode(enc, DecodeOptions{})
		if err != nil {
			t.Fatalf("Decode(%x): %v", enc, err)
		}
		if rk.Mode != ModeExact {
			t.Fatalf("expected ModeExact, got %v", rk.Mode)
		}
		reenc := mustEncode(t, rk.Key)
		if !bytes.Equal(enc, reenc) {
			t.Fatalf("roundtrip mismatch: %x != %x", enc, reenc)
		}
	}
}

func TestNullEscapeIdempotence(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		{0x00},
		{0x00, 0x00},
		{0x01, 0x00, 0x02},
		{0xFF, 0x00, 0xFF},
	}
	for _, in := range inputs {
		enc := mustEncode(t, Key{Bytes(in)})
		rk, err := Decode(enc, DecodeOptions{})
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		got := rk.Key[0].Bytes
		if !bytes.Equal(got, in) {
			t.Fatalf("escape roundtrip: got %x, want %x", got, in)
		}
	}
}

// TestOrderInvariant checks that byte-wise comparison of encoded keys
// matches the intended ordering of their decoded values, across types.
func TestOrderInvariant(t *testing.T) {
	ordered := []Key{
		{Bytes([]byte{0x00})},
		{Bytes([]byte{0x01})},
		{Bytes([]byte{0x01, 0x00})},
		{String("a")},
		{String("b")},
		{Int(-1000)},
		{Int(-1)},
		{Int(0)},
		{Int(1)},
		{Int(1000)},
		{Float(math.Inf(-1))},
		{Float(-1.5)},
		{Float(0)},
		{Float(1.5)},
		{Float(math.Inf(1))},
		{Float(math.Copysign(math.NaN(), -1))},
		{Bool(false)},
		{Bool(true)},
	}

	var prev []byte
	for i, k := range ordered {
		enc := mustEncode(t, k)
		if i > 0 && bytes.Compare(prev, enc) >= 0 {
			t.Fatalf("order violated at index %d: %x >= %x", i, prev, enc)
		}
		prev = enc
	}
}

func TestIntegerOrderAcrossMagnitudes(t *testing.T) {
	// Exercise the small (<=8 byte magnitude) / large (>8 byte magnitude)
	// boundary on both sides of zero.
	big8 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(1)) // 8-byte magnitude
	big9 := new(big.Int).Lsh(big.NewInt(1), 65)                                 // >8-byte magnitude

	vals := []*big.Int{
		new(big.Int).Neg(big9),
		new(big.Int).Neg(big8),
		big.NewInt(-1),
		big.NewInt(0),
		big.NewInt(1),
		big8,
		big9,
	}

	var prev []byte
	for i, v := range vals {
		enc := mustEncode(t, Key{BigInt(v)})
		if i > 0 && bytes.Compare(prev, enc) >= 0 {
			t.Fatalf("order violated at index %d (%v): %x >= %x", i, v, prev, enc)
		}
		prev = enc
	}
}

func TestFloatNaNCanonicalization(t *testing.T) {
	nan1 := math.NaN()
	nan2 := math.Float64frombits(math.Float64bits(nan1) ^ 0xFF) // different payload, still NaN
	nan3 := math.Copysign(math.NaN(), -1)                       // different sign, still NaN
	enc1 := mustEncode(t, Key{Float(nan1)})
	enc2 := mustEncode(t, Key{Float(nan2)})
	enc3 := mustEncode(t, Key{Float(nan3)})
	if !bytes.Equal(enc1, enc2) {
		t.Fatalf("distinct NaN payloads encoded differently: %x != %x", enc1, enc2)
	}
	if !bytes.Equal(enc1, enc3) {
		t.Fatalf("differently-signed NaNs encoded differently: %x != %x", enc1, enc3)
	}
}

func TestFloatSignedZeroOrder(t *testing.T) {
	negZero := math.Copysign(0, -1)
	posZero := 0.0
	encNeg := mustEncode(t, Key{Float(negZero)})
	encPos := mustEncode(t, Key{Float(posZero)})
	if bytes.Compare(encNeg, encPos) >= 0 {
		t.Fatalf("expected -0.0 < +0.0 in encoded order: %x >= %x", encNeg, encPos)
	}
}

func TestRangeEndpointPromotion(t *testing.T) {
	base := Key{String("a")}
	promoted := WithEmptyByteSuffix(base)
	if len(promoted) != len(base)+1 {
		t.Fatalf("expected one extra part, got %d", len(promoted))
	}

	baseEnc := mustEncode(t, base)
	promotedEnc := mustEncode(t, promoted)
	if bytes.Compare(baseEnc, promotedEnc) >= 0 {
		t.Fatalf("promoted key should sort strictly after base prefix: %x >= %x", baseEnc, promotedEnc)
	}

	// Anything sharing base as a strict prefix must sort before the
	// promoted key (it's the smallest key strictly greater than base).
	sibling := Key{String("a"), Bytes([]byte{0x01})}
	siblingEnc := mustEncode(t, sibling)
	if bytes.Compare(promotedEnc, siblingEnc) > 0 {
		t.Fatalf("promoted key should be <= any key sharing base as prefix: %x > %x", promotedEnc, siblingEnc)
	}
}

func TestDecodeRangeMarkers(t *testing.T) {
	enc := mustEncode(t, Key{String("x")})

	afterEnc := append(append([]byte{}, enc...), 0x00)
	rk, err := Decode(afterEnc, DecodeOptions{AllowRange: true})
	if err != nil {
		t.Fatalf("Decode after: %v", err)
	}
	if rk.Mode != ModeAfter {
		t.Fatalf("expected ModeAfter, got %v", rk.Mode)
	}

	beforeEnc := append(append([]byte{}, enc...), 0xFF)
	rk, err = Decode(beforeEnc, DecodeOptions{AllowRange: true})
	if err != nil {
		t.Fatalf("Decode before: %v", err)
	}
	if rk.Mode != ModeBefore {
		t.Fatalf("expected ModeBefore, got %v", rk.Mode)
	}

	if _, err := Decode(afterEnc, DecodeOptions{AllowRange: false}); err != ErrRangeByteUnexpected {
		t.Fatalf("expected ErrRangeByteUnexpected, got %v", err)
	}
}

func TestMagnitudeTooBig(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 256*8)
	if _, err := Encode(Key{BigInt(huge)}); err != ErrMagnitudeTooBig {
		t.Fatalf("expected ErrMagnitudeTooBig, got %v", err)
	}
}
