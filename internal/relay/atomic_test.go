package relay

import (
	"context"
	"testing"

	"github.com/Ap3pp3rs94/kvrelay/internal/datapath"
)

// TestAtomicWriteCheckFailure exercises §8's scenario 3: a check against
// an all-zero versionstamp fails once the key already has an entry with
// a real versionstamp, and the write reports AW_CHECK_FAILURE with an
// empty versionstamp.
func TestAtomicWriteCheckFailure(t *testing.T) {
	store := openStore(t)

	first := datapath.AtomicWrite{
		Mutations: []datapath.Mutation{
			{Key: []byte("k"), Value: &datapath.KvValue{Data: []byte("1"), Encoding: 3}, MutationType: datapath.MSet},
		},
	}
	out, err := AtomicWrite(context.Background(), store, first)
	if err != nil {
		t.Fatalf("first AtomicWrite: %v", err)
	}
	if out.Status != datapath.AWSuccess {
		t.Fatalf("expected AW_SUCCESS, got %d", out.Status)
	}

	second := datapath.AtomicWrite{
		Checks: []datapath.Check{{Key: []byte("k"), Versionstamp: make([]byte, 10)}},
		Mutations: []datapath.Mutation{
			{Key: []byte("k"), Value: &datapath.KvValue{Data: []byte("2"), Encoding: 3}, MutationType: datapath.MSet},
		},
	}
	out, err = AtomicWrite(context.Background(), store, second)
	if err != nil {
		t.Fatalf("second AtomicWrite: %v", err)
	}
	if out.Status != datapath.AWCheckFailure {
		t.Fatalf("expected AW_CHECK_FAILURE, got %d", out.Status)
	}
	if len(out.Versionstamp) != 0 {
		t.Fatalf("expected an empty versionstamp on check failure, got %x", out.Versionstamp)
	}
}

// TestAtomicWriteSetSuffixVersionstampedKey exercises the
// SET_SUFFIX_VERSIONSTAMPED_KEY mutation path end to end through the
// relay translation layer.
func TestAtomicWriteSetSuffixVersionstampedKey(t *testing.T) {
	store := openStore(t)

	req := datapath.AtomicWrite{
		Mutations: []datapath.Mutation{
			{Key: []byte("prefix-"), Value: &datapath.KvValue{Data: []byte("v"), Encoding: 3}, MutationType: datapath.MSetSuffixVersionstampedKey},
		},
	}
	out, err := AtomicWrite(context.Background(), store, req)
	if err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	if out.Status != datapath.AWSuccess {
		t.Fatalf("expected AW_SUCCESS, got %d", out.Status)
	}
	if len(out.Versionstamp) != 10 {
		t.Fatalf("expected a 10-byte versionstamp, got %d", len(out.Versionstamp))
	}
}

func TestAtomicWriteCounterSum(t *testing.T) {
	store := openStore(t)
	le64 := func(v uint64) []byte {
		b := make([]byte, 8)
		for i := 0; i < 8; i++ {
			b[i] = byte(v >> (8 * uint(i)))
		}
		return b
	}

	req := datapath.AtomicWrite{
		Mutations: []datapath.Mutation{
			{Key: []byte("ctr"), Value: &datapath.KvValue{Data: le64(5), Encoding: 2}, MutationType: datapath.MSum},
		},
	}
	out, err := AtomicWrite(context.Background(), store, req)
	if err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	if out.Status != datapath.AWSuccess {
		t.Fatalf("expected AW_SUCCESS, got %d", out.Status)
	}
}
