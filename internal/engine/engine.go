// Package engine declares the boundary between the wire-layer relay and
// the underlying key-value engine. Per §9's Design Notes this is a
// trait/interface: list, atomic transactions, and watch. The relay
// speaks only in terms of opaque encoded key bytes and value envelopes;
// it never inspects engine-internal representations.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/Ap3pp3rs94/kvrelay/internal/envelope"
)

// Versionstamp is the engine's 10-byte commit identifier, represented
// as a lowercase hex string at this boundary (raw bytes belong only to
// the wire codec, per §3).
type Versionstamp string

// Entry is one stored key/value pair as returned by List.
type Entry struct {
	Key          []byte
	Value        envelope.Value
	Versionstamp Versionstamp
}

// Selector describes the half-open range a List call should scan.
// Exactly one of End or Prefix is set: End for an exact upper bound,
// Prefix for prefix-scan semantics (the "before" range-endpoint case).
type Selector struct {
	Start  []byte
	End    []byte
	Prefix []byte
}

// ListOptions bounds and orders a List call.
type ListOptions struct {
	Limit   uint32 // 0 = unbounded
	Reverse bool
}

// ErrCheckFailed is returned by Commit when any attached Check did not
// hold at commit time.
var ErrCheckFailed = errors.New("engine: atomic check failed")

// Store is the engine boundary the relay's C6 operations are built on.
type Store interface {
	// List returns entries in [start, end) or the prefix scan of
	// [start, prefix-end), honoring ListOptions.
	List(ctx context.Context, sel Selector, opts ListOptions) (Iterator, error)

	// Atomic begins a new transaction builder.
	Atomic() Transaction

	// Watch returns a stream of update batches for the given keys. Each
	// batch reports one Entry-or-absent per watched key, in request
	// order. The returned Stream is cancelled when ctx is done.
	Watch(ctx context.Context, keys [][]byte) (WatchStream, error)

	Close() error
}

// Iterator yields List results lazily.
type Iterator interface {
	// Next returns the next entry, or ok=false at the end of the range.
	Next() (e Entry, ok bool, err error)
}

// CheckSpec is one optimistic-concurrency check: Expect is nil to
// assert the key is absent, or a specific Versionstamp to assert the
// key's current versionstamp matches.
type CheckSpec struct {
	Key    []byte
	Expect *Versionstamp
}

// MutationKind enumerates the atomic mutation types of §3.
type MutationKind int

const (
	MutationSet MutationKind = iota
	MutationDelete
	MutationSum
	MutationMax
	MutationMin
	MutationSetSuffixVersionstampedKey
)

// MutationSpec is one write attached to a transaction.
type MutationSpec struct {
	Kind  MutationKind
	Key   []byte
	Value envelope.Value // meaningful for Set/Sum/Max/Min/SetSuffixVersionstampedKey

	// ExpireAt is the absolute wall-clock expiry for Set mutations, or
	// the zero Time for none. Negative durations (ExpireAt in the past)
	// are passed through to the engine uninterpreted, per §4.6.2.
	ExpireAt time.Time

	// VersionstampPlaceholderOffset is the byte offset within Key of the
	// 10-byte placeholder the engine must overwrite with the commit
	// versionstamp, meaningful only for MutationSetSuffixVersionstampedKey.
	VersionstampPlaceholderOffset int
}

// EnqueueSpec is one queue message attached to a transaction.
type EnqueueSpec struct {
	Payload           envelope.Value // always V8-encoded
	Delay             time.Duration  // 0 if deadline already passed
	KeysIfUndelivered [][]byte
	BackoffSchedule   []uint32
}

// Transaction accumulates checks, mutations, and enqueues attached in
// request order, then commits them atomically.
type Transaction interface {
	Check(CheckSpec)
	Mutate(MutationSpec)
	Enqueue(EnqueueSpec)

	// Commit attempts the transaction. On success it returns the commit
	// versionstamp. On check failure it returns ErrCheckFailed. Any
	// other error is a generic commit failure.
	Commit(ctx context.Context) (Versionstamp, error)
}

// KeyChange reports whether a watched key changed and, if so, its
// current entry (absent iff the key has no current value).
type KeyChange struct {
	Changed  bool
	Entry    *Entry
}

// WatchStream yields one batch of KeyChange per watched key, in request
// order, for every observed update.
type WatchStream interface {
	// Next blocks until the next batch is available, the stream is
	// cancelled, or the engine errors.
	Next(ctx context.Context) ([]KeyChange, error)
	Close() error
}
