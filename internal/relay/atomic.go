package relay

import (
	"context"
	"errors"
	"time"

	"github.com/Ap3pp3rs94/kvrelay/internal/apperrors"
	"github.com/Ap3pp3rs94/kvrelay/internal/datapath"
	"github.com/Ap3pp3rs94/kvrelay/internal/engine"
	"github.com/Ap3pp3rs94/kvrelay/internal/envelope"
)

// versionstampPlaceholderTag is the type byte this relay writes in front
// of the 10-byte placeholder it appends to SET_SUFFIX_VERSIONSTAMPED_KEY
// keys (§4.6.2 step 3); the engine overwrites the placeholder with the
// commit versionstamp. The tag byte stays in the stored key, so reads
// return it; tuple.Decode does not recognize it.
const versionstampPlaceholderTag = 0x33

// AtomicWrite implements §4.6.2: build one engine transaction from the
// decoded checks/mutations/enqueues, attached in request order, and map
// the commit outcome to a response.
func AtomicWrite(ctx context.Context, store engine.Store, req datapath.AtomicWrite) (datapath.AtomicWriteOutput, error) {
	now := time.Now()
	tx := store.Atomic()

	for _, c := range req.Checks {
		tx.Check(engine.CheckSpec{
			Key:    c.Key,
			Expect: versionstampFromRawBytes(c.Versionstamp),
		})
	}

	for _, m := range req.Mutations {
		spec, err := decodeMutationSpec(m, now)
		if err != nil {
			return datapath.AtomicWriteOutput{}, err
		}
		tx.Mutate(spec)
	}

	for _, e := range req.Enqueues {
		spec, err := decodeEnqueueSpec(e, now)
		if err != nil {
			return datapath.AtomicWriteOutput{}, err
		}
		tx.Enqueue(spec)
	}

	vs, err := tx.Commit(ctx)
	switch {
	case err == nil:
		vsBytes, err := versionstampRawBytes(vs)
		if err != nil {
			return datapath.AtomicWriteOutput{}, apperrors.New(apperrors.CodeEngineIO, err)
		}
		return datapath.AtomicWriteOutput{Status: datapath.AWSuccess, Versionstamp: vsBytes}, nil

	case errors.Is(err, engine.ErrCheckFailed):
		// The engine does not report which check failed; failed_checks
		// is left empty per §9's second open question.
		return datapath.AtomicWriteOutput{Status: datapath.AWCheckFailure}, nil

	default:
		return datapath.AtomicWriteOutput{Status: datapath.AWUnspecified}, nil
	}
}

func decodeMutationSpec(m datapath.Mutation, now time.Time) (engine.MutationSpec, error) {
	switch m.MutationType {
	case datapath.MSet:
		val, err := decodeValue(m.Value)
		if err != nil {
			return engine.MutationSpec{}, err
		}
		return engine.MutationSpec{
			Kind:     engine.MutationSet,
			Key:      m.Key,
			Value:    val,
			ExpireAt: expireAtFromMs(m.ExpireAtMs, now),
		}, nil

	case datapath.MDelete:
		return engine.MutationSpec{Kind: engine.MutationDelete, Key: m.Key}, nil

	case datapath.MSum, datapath.MMax, datapath.MMin:
		val, err := decodeCounterValue(m.Value)
		if err != nil {
			return engine.MutationSpec{}, err
		}
		return engine.MutationSpec{Kind: mutationKindFor(m.MutationType), Key: m.Key, Value: val}, nil

	case datapath.MSetSuffixVersionstampedKey:
		val, err := decodeValue(m.Value)
		if err != nil {
			return engine.MutationSpec{}, err
		}
		key, offset := appendVersionstampPlaceholder(m.Key)
		return engine.MutationSpec{
			Kind:                          engine.MutationSetSuffixVersionstampedKey,
			Key:                           key,
			Value:                         val,
			ExpireAt:                      expireAtFromMs(m.ExpireAtMs, now),
			VersionstampPlaceholderOffset: offset,
		}, nil

	default:
		return engine.MutationSpec{}, apperrors.New(apperrors.CodeWireDecode, errUnknownMutationType(m.MutationType))
	}
}

func mutationKindFor(t int32) engine.MutationKind {
	switch t {
	case datapath.MMax:
		return engine.MutationMax
	case datapath.MMin:
		return engine.MutationMin
	default:
		return engine.MutationSum
	}
}

func decodeValue(v *datapath.KvValue) (envelope.Value, error) {
	if v == nil {
		return envelope.Value{}, apperrors.New(apperrors.CodeValueDecode, errMissingValue)
	}
	val := envelope.Value{Data: v.Data, Encoding: envelope.Encoding(v.Encoding)}
	if err := envelope.Validate(val); err != nil {
		return envelope.Value{}, apperrors.New(apperrors.CodeValueDecode, err)
	}
	return val, nil
}

func decodeCounterValue(v *datapath.KvValue) (envelope.Value, error) {
	val, err := decodeValue(v)
	if err != nil {
		return envelope.Value{}, err
	}
	if val.Encoding != envelope.EncodingLE64 {
		return envelope.Value{}, apperrors.New(apperrors.CodeValueDecode, errCounterMustBeLE64)
	}
	if _, err := val.Counter(); err != nil {
		return envelope.Value{}, apperrors.New(apperrors.CodeValueDecode, err)
	}
	return val, nil
}

// expireAtFromMs converts the wire's absolute expire_at_ms into a
// time.Time, passed through uninterpreted even when non-positive or in
// the past (§4.6.2 step 3, §9's first open question: the relay does not
// clamp). A zero expireAtMs means "no expiry".
func expireAtFromMs(expireAtMs int64, now time.Time) time.Time {
	if expireAtMs == 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(expireAtMs-now.UnixMilli()) * time.Millisecond)
}

// appendVersionstampPlaceholder appends the 10-byte placeholder the
// engine will overwrite with the real commit versionstamp, and returns
// the resulting key plus the byte offset of the placeholder within it.
func appendVersionstampPlaceholder(key []byte) ([]byte, int) {
	out := make([]byte, len(key)+1+10)
	copy(out, key)
	out[len(key)] = versionstampPlaceholderTag
	offset := len(key) + 1
	return out, offset
}

func decodeEnqueueSpec(e datapath.Enqueue, now time.Time) (engine.EnqueueSpec, error) {
	payload := envelope.V8(e.Payload)
	var delay time.Duration
	if e.DeadlineMs > now.UnixMilli() {
		delay = time.Duration(e.DeadlineMs-now.UnixMilli()) * time.Millisecond
	}
	return engine.EnqueueSpec{
		Payload:           payload,
		Delay:             delay,
		KeysIfUndelivered: e.KeysIfUndelivered,
		BackoffSchedule:   e.BackoffSchedule,
	}, nil
}

var (
	errMissingValue      = errors.New("relay: mutation requires a value")
	errCounterMustBeLE64 = errors.New("relay: SUM/MAX/MIN value must decode to an LE64 counter")
)

func errUnknownMutationType(t int32) error {
	return &unknownMutationTypeError{t: t}
}

type unknownMutationTypeError struct{ t int32 }

func (e *unknownMutationTypeError) Error() string {
	return "relay: unknown mutation type"
}
