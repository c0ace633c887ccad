// Package datapath implements the per-message encode/decode pairs for
// the external datapath schema (§6.2), built on the generic tag-wire
// codec in internal/wire. Unknown field numbers are skipped for
// forward compatibility; known fields at their default value are
// omitted on encode.
package datapath

import "github.com/Ap3pp3rs94/kvrelay/internal/wire"

// --- SnapshotRead request -------------------------------------------------

type ReadRange struct {
	Start   []byte
	End     []byte
	Limit   int32
	Reverse bool
}

type SnapshotRead struct {
	Ranges []ReadRange
}

func DecodeSnapshotRead(b []byte) (SnapshotRead, error) {
	r := wire.NewReader(b)
	var msg SnapshotRead
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return SnapshotRead{}, err
		}
		if !ok {
			break
		}
		if rec.Field == 1 && rec.Type == wire.Len {
			rr, err := decodeReadRange(rec.Bytes)
			if err != nil {
				return SnapshotRead{}, err
			}
			msg.Ranges = append(msg.Ranges, rr)
		}
		// unknown fields are skipped: the record is already fully
		// consumed by ReadRecord regardless of field number.
	}
	return msg, nil
}

// EncodeSnapshotRead is used by tests exercising round-trip decode(encode(x)) = x.
func EncodeSnapshotRead(msg SnapshotRead) []byte {
	w := wire.NewWriter(64)
	for _, rr := range msg.Ranges {
		wire.WriteLenField(w, 1, encodeReadRange(rr))
	}
	return w.Bytes()
}

func decodeReadRange(b []byte) (ReadRange, error) {
	r := wire.NewReader(b)
	var rr ReadRange
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return ReadRange{}, err
		}
		if !ok {
			break
		}
		switch rec.Field {
		case 1:
			rr.Start = rec.Bytes
		case 2:
			rr.End = rec.Bytes
		case 3:
			rr.Limit = int32(rec.Varint)
		case 4:
			rr.Reverse = rec.Varint != 0
		}
	}
	return rr, nil
}

func encodeReadRange(rr ReadRange) []byte {
	w := wire.NewWriter(32)
	wire.WriteLenField(w, 1, rr.Start)
	wire.WriteLenField(w, 2, rr.End)
	wire.WriteVarintField(w, 3, uint64(uint32(rr.Limit)))
	wire.WriteBoolField(w, 4, rr.Reverse)
	return w.Bytes()
}

// --- SnapshotRead response -------------------------------------------------

type KvEntry struct {
	Key          []byte
	Value        []byte
	Encoding     int32
	Versionstamp []byte
}

func encodeKvEntry(e KvEntry) []byte {
	w := wire.NewWriter(32 + len(e.Key) + len(e.Value))
	wire.WriteLenField(w, 1, e.Key)
	wire.WriteLenField(w, 2, e.Value)
	wire.WriteVarintField(w, 3, uint64(uint32(e.Encoding)))
	wire.WriteLenField(w, 4, e.Versionstamp)
	return w.Bytes()
}

func decodeKvEntry(b []byte) (KvEntry, error) {
	r := wire.NewReader(b)
	var e KvEntry
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return KvEntry{}, err
		}
		if !ok {
			break
		}
		switch rec.Field {
		case 1:
			e.Key = rec.Bytes
		case 2:
			e.Value = rec.Bytes
		case 3:
			e.Encoding = int32(rec.Varint)
		case 4:
			e.Versionstamp = rec.Bytes
		}
	}
	return e, nil
}

type ReadRangeOutput struct {
	Values []KvEntry
}

const (
	SRUnspecified   int32 = 0
	SRSuccess       int32 = 1
	SRReadDisabled  int32 = 2
)

type SnapshotReadOutput struct {
	Ranges                   []ReadRangeOutput
	ReadDisabled             bool
	ReadIsStronglyConsistent bool
	Status                   int32
}

func EncodeSnapshotReadOutput(msg SnapshotReadOutput) []byte {
	w := wire.NewWriter(64)
	for _, rr := range msg.Ranges {
		inner := wire.NewWriter(64)
		for _, e := range rr.Values {
			wire.WriteLenField(inner, 1, encodeKvEntry(e))
		}
		// An empty range is still one element of the repeated field, so
		// it is written with a zero length rather than omitted.
		wire.WriteTag(w, 1, wire.Len)
		w.WriteVarU64LE(uint64(inner.Len()))
		w.WriteBytes(inner.Bytes())
	}
	wire.WriteBoolField(w, 2, msg.ReadDisabled)
	wire.WriteBoolField(w, 4, msg.ReadIsStronglyConsistent)
	wire.WriteVarintField(w, 8, uint64(uint32(msg.Status)))
	return w.Bytes()
}

func DecodeSnapshotReadOutput(b []byte) (SnapshotReadOutput, error) {
	r := wire.NewReader(b)
	var msg SnapshotReadOutput
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return SnapshotReadOutput{}, err
		}
		if !ok {
			break
		}
		switch rec.Field {
		case 1:
			rro, err := decodeReadRangeOutput(rec.Bytes)
			if err != nil {
				return SnapshotReadOutput{}, err
			}
			msg.Ranges = append(msg.Ranges, rro)
		case 2:
			msg.ReadDisabled = rec.Varint != 0
		case 4:
			msg.ReadIsStronglyConsistent = rec.Varint != 0
		case 8:
			msg.Status = int32(rec.Varint)
		}
	}
	return msg, nil
}

func decodeReadRangeOutput(b []byte) (ReadRangeOutput, error) {
	r := wire.NewReader(b)
	var out ReadRangeOutput
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return ReadRangeOutput{}, err
		}
		if !ok {
			break
		}
		if rec.Field == 1 {
			e, err := decodeKvEntry(rec.Bytes)
			if err != nil {
				return ReadRangeOutput{}, err
			}
			out.Values = append(out.Values, e)
		}
	}
	return out, nil
}

// --- AtomicWrite request -------------------------------------------------

type KvValue struct {
	Data     []byte
	Encoding int32
}

func decodeKvValue(b []byte) (KvValue, error) {
	r := wire.NewReader(b)
	var v KvValue
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return KvValue{}, err
		}
		if !ok {
			break
		}
		switch rec.Field {
		case 1:
			v.Data = rec.Bytes
		case 2:
			v.Encoding = int32(rec.Varint)
		}
	}
	return v, nil
}

func encodeKvValue(v KvValue) []byte {
	w := wire.NewWriter(16 + len(v.Data))
	wire.WriteLenField(w, 1, v.Data)
	wire.WriteVarintField(w, 2, uint64(uint32(v.Encoding)))
	return w.Bytes()
}

type Check struct {
	Key          []byte
	Versionstamp []byte
}

func decodeCheck(b []byte) (Check, error) {
	r := wire.NewReader(b)
	var c Check
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return Check{}, err
		}
		if !ok {
			break
		}
		switch rec.Field {
		case 1:
			c.Key = rec.Bytes
		case 2:
			c.Versionstamp = rec.Bytes
		}
	}
	return c, nil
}

const (
	MUnspecified                int32 = 0
	MSet                        int32 = 1
	MDelete                     int32 = 2
	MSum                        int32 = 3
	MMax                        int32 = 4
	MMin                        int32 = 5
	MSetSuffixVersionstampedKey int32 = 9
)

type Mutation struct {
	Key          []byte
	Value        *KvValue
	MutationType int32
	ExpireAtMs   int64
}

func decodeMutation(b []byte) (Mutation, error) {
	r := wire.NewReader(b)
	var m Mutation
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return Mutation{}, err
		}
		if !ok {
			break
		}
		switch rec.Field {
		case 1:
			m.Key = rec.Bytes
		case 2:
			v, err := decodeKvValue(rec.Bytes)
			if err != nil {
				return Mutation{}, err
			}
			m.Value = &v
		case 3:
			m.MutationType = int32(rec.Varint)
		case 4:
			m.ExpireAtMs = int64(rec.Varint)
		}
	}
	return m, nil
}

type Enqueue struct {
	Payload           []byte
	DeadlineMs        int64
	KeysIfUndelivered [][]byte
	BackoffSchedule   []uint32
}

func decodeEnqueue(b []byte) (Enqueue, error) {
	r := wire.NewReader(b)
	var e Enqueue
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return Enqueue{}, err
		}
		if !ok {
			break
		}
		switch rec.Field {
		case 1:
			e.Payload = rec.Bytes
		case 2:
			e.DeadlineMs = int64(rec.Varint)
		case 3:
			e.KeysIfUndelivered = append(e.KeysIfUndelivered, rec.Bytes)
		case 4:
			if rec.Type == wire.Len {
				vs, err := wire.DecodePackedU32(rec.Bytes)
				if err != nil {
					return Enqueue{}, err
				}
				e.BackoffSchedule = append(e.BackoffSchedule, vs...)
			} else {
				e.BackoffSchedule = append(e.BackoffSchedule, uint32(rec.Varint))
			}
		}
	}
	return e, nil
}

type AtomicWrite struct {
	Checks    []Check
	Mutations []Mutation
	Enqueues  []Enqueue
}

// EncodeAtomicWrite is used by tests and by any client-side caller that
// needs to build a request this relay accepts.
func EncodeAtomicWrite(msg AtomicWrite) []byte {
	w := wire.NewWriter(64)
	for _, c := range msg.Checks {
		wire.WriteLenField(w, 1, encodeCheck(c))
	}
	for _, m := range msg.Mutations {
		wire.WriteLenField(w, 2, encodeMutation(m))
	}
	for _, e := range msg.Enqueues {
		wire.WriteLenField(w, 3, encodeEnqueue(e))
	}
	return w.Bytes()
}

func encodeCheck(c Check) []byte {
	w := wire.NewWriter(32)
	wire.WriteLenField(w, 1, c.Key)
	wire.WriteLenField(w, 2, c.Versionstamp)
	return w.Bytes()
}

func encodeMutation(m Mutation) []byte {
	w := wire.NewWriter(32 + len(m.Key))
	wire.WriteLenField(w, 1, m.Key)
	if m.Value != nil {
		wire.WriteLenField(w, 2, encodeKvValue(*m.Value))
	}
	wire.WriteVarintField(w, 3, uint64(uint32(m.MutationType)))
	if m.ExpireAtMs != 0 {
		wire.WriteTag(w, 4, wire.Varint)
		w.WriteVarU64LE(uint64(m.ExpireAtMs))
	}
	return w.Bytes()
}

func encodeEnqueue(e Enqueue) []byte {
	w := wire.NewWriter(32 + len(e.Payload))
	wire.WriteLenField(w, 1, e.Payload)
	if e.DeadlineMs != 0 {
		wire.WriteTag(w, 2, wire.Varint)
		w.WriteVarU64LE(uint64(e.DeadlineMs))
	}
	for _, k := range e.KeysIfUndelivered {
		wire.WriteLenField(w, 3, k)
	}
	wire.WritePackedU32Field(w, 4, e.BackoffSchedule)
	return w.Bytes()
}

func DecodeAtomicWrite(b []byte) (AtomicWrite, error) {
	r := wire.NewReader(b)
	var msg AtomicWrite
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return AtomicWrite{}, err
		}
		if !ok {
			break
		}
		switch rec.Field {
		case 1:
			c, err := decodeCheck(rec.Bytes)
			if err != nil {
				return AtomicWrite{}, err
			}
			msg.Checks = append(msg.Checks, c)
		case 2:
			m, err := decodeMutation(rec.Bytes)
			if err != nil {
				return AtomicWrite{}, err
			}
			msg.Mutations = append(msg.Mutations, m)
		case 3:
			e, err := decodeEnqueue(rec.Bytes)
			if err != nil {
				return AtomicWrite{}, err
			}
			msg.Enqueues = append(msg.Enqueues, e)
		}
	}
	return msg, nil
}

// --- AtomicWrite response -------------------------------------------------

const (
	AWUnspecified   int32 = 0
	AWSuccess       int32 = 1
	AWCheckFailure  int32 = 2
	AWWriteDisabled int32 = 5
)

type AtomicWriteOutput struct {
	Status       int32
	Versionstamp []byte
	FailedChecks []uint32
}

func EncodeAtomicWriteOutput(msg AtomicWriteOutput) []byte {
	w := wire.NewWriter(32)
	wire.WriteVarintField(w, 1, uint64(uint32(msg.Status)))
	wire.WriteLenField(w, 2, msg.Versionstamp)
	wire.WritePackedU32Field(w, 4, msg.FailedChecks)
	return w.Bytes()
}

func DecodeAtomicWriteOutput(b []byte) (AtomicWriteOutput, error) {
	r := wire.NewReader(b)
	var msg AtomicWriteOutput
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return AtomicWriteOutput{}, err
		}
		if !ok {
			break
		}
		switch rec.Field {
		case 1:
			msg.Status = int32(rec.Varint)
		case 2:
			msg.Versionstamp = rec.Bytes
		case 4:
			if rec.Type == wire.Len {
				vs, err := wire.DecodePackedU32(rec.Bytes)
				if err != nil {
					return AtomicWriteOutput{}, err
				}
				msg.FailedChecks = append(msg.FailedChecks, vs...)
			} else {
				msg.FailedChecks = append(msg.FailedChecks, uint32(rec.Varint))
			}
		}
	}
	return msg, nil
}

// --- Watch -------------------------------------------------

type WatchKey struct {
	Key []byte
}

type Watch struct {
	Keys []WatchKey
}

func DecodeWatch(b []byte) (Watch, error) {
	r := wire.NewReader(b)
	var msg Watch
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return Watch{}, err
		}
		if !ok {
			break
		}
		if rec.Field == 1 {
			wk, err := decodeWatchKey(rec.Bytes)
			if err != nil {
				return Watch{}, err
			}
			msg.Keys = append(msg.Keys, wk)
		}
	}
	return msg, nil
}

// EncodeWatch is used by tests exercising round-trip decode(encode(x)) = x.
func EncodeWatch(msg Watch) []byte {
	w := wire.NewWriter(32)
	for _, k := range msg.Keys {
		inner := wire.NewWriter(16 + len(k.Key))
		wire.WriteLenField(inner, 1, k.Key)
		wire.WriteLenField(w, 1, inner.Bytes())
	}
	return w.Bytes()
}

func decodeWatchKey(b []byte) (WatchKey, error) {
	r := wire.NewReader(b)
	var wk WatchKey
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return WatchKey{}, err
		}
		if !ok {
			break
		}
		if rec.Field == 1 {
			wk.Key = rec.Bytes
		}
	}
	return wk, nil
}

type WatchKeyOutput struct {
	Changed        bool
	EntryIfChanged *KvEntry
}

type WatchOutput struct {
	Status int32
	Keys   []WatchKeyOutput
}

func EncodeWatchOutput(msg WatchOutput) []byte {
	w := wire.NewWriter(64)
	wire.WriteVarintField(w, 1, uint64(uint32(msg.Status)))
	for _, k := range msg.Keys {
		inner := wire.NewWriter(32)
		wire.WriteBoolField(inner, 1, k.Changed)
		if k.EntryIfChanged != nil {
			wire.WriteLenField(inner, 2, encodeKvEntry(*k.EntryIfChanged))
		}
		wire.WriteLenField(w, 2, inner.Bytes())
	}
	return w.Bytes()
}

func DecodeWatchOutput(b []byte) (WatchOutput, error) {
	r := wire.NewReader(b)
	var msg WatchOutput
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return WatchOutput{}, err
		}
		if !ok {
			break
		}
		switch rec.Field {
		case 1:
			msg.Status = int32(rec.Varint)
		case 2:
			wko, err := decodeWatchKeyOutput(rec.Bytes)
			if err != nil {
				return WatchOutput{}, err
			}
			msg.Keys = append(msg.Keys, wko)
		}
	}
	return msg, nil
}

func decodeWatchKeyOutput(b []byte) (WatchKeyOutput, error) {
	r := wire.NewReader(b)
	var wko WatchKeyOutput
	for {
		rec, ok, err := wire.ReadRecord(r)
		if err != nil {
			return WatchKeyOutput{}, err
		}
		if !ok {
			break
		}
		switch rec.Field {
		case 1:
			wko.Changed = rec.Varint != 0
		case 2:
			e, err := decodeKvEntry(rec.Bytes)
			if err != nil {
				return WatchKeyOutput{}, err
			}
			wko.EntryIfChanged = &e
		}
	}
	return wko, nil
}
