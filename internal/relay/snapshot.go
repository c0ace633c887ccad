// Package relay implements C6: translating decoded datapath requests
// into engine.Store operations and encoding the results back into
// datapath responses.
package relay

import (
	"context"

	"github.com/Ap3pp3rs94/kvrelay/internal/apperrors"
	"github.com/Ap3pp3rs94/kvrelay/internal/datapath"
	"github.com/Ap3pp3rs94/kvrelay/internal/engine"
	"github.com/Ap3pp3rs94/kvrelay/internal/envelope"
	"github.com/Ap3pp3rs94/kvrelay/internal/tuple"
)

// SnapshotRead implements §4.6.1.
func SnapshotRead(ctx context.Context, store engine.Store, req datapath.SnapshotRead) (datapath.SnapshotReadOutput, error) {
	out := datapath.SnapshotReadOutput{
		ReadDisabled:             false,
		ReadIsStronglyConsistent: true,
		Status:                   datapath.SRSuccess,
	}

	for _, rr := range req.Ranges {
		rangeOut, err := readOneRange(ctx, store, rr)
		if err != nil {
			return datapath.SnapshotReadOutput{}, err
		}
		out.Ranges = append(out.Ranges, rangeOut)
	}

	return out, nil
}

func readOneRange(ctx context.Context, store engine.Store, rr datapath.ReadRange) (datapath.ReadRangeOutput, error) {
	start, err := tuple.Decode(rr.Start, tuple.DecodeOptions{AllowRange: true})
	if err != nil {
		return datapath.ReadRangeOutput{}, apperrors.New(apperrors.CodeKeyDecode, err)
	}
	if start.Mode == tuple.ModeBefore {
		return datapath.ReadRangeOutput{}, apperrors.New(apperrors.CodeSelectorUnsupported, errUnsupportedStartMode)
	}

	end, err := tuple.Decode(rr.End, tuple.DecodeOptions{AllowRange: true})
	if err != nil {
		return datapath.ReadRangeOutput{}, apperrors.New(apperrors.CodeKeyDecode, err)
	}

	sel, err := buildSelector(start, end)
	if err != nil {
		return datapath.ReadRangeOutput{}, err
	}

	it, err := store.List(ctx, sel, engine.ListOptions{Limit: uint32(rr.Limit), Reverse: rr.Reverse})
	if err != nil {
		return datapath.ReadRangeOutput{}, apperrors.New(apperrors.CodeEngineIO, err)
	}

	var out datapath.ReadRangeOutput
	for {
		e, ok, err := it.Next()
		if err != nil {
			return datapath.ReadRangeOutput{}, apperrors.New(apperrors.CodeEngineIO, err)
		}
		if !ok {
			break
		}
		entry, err := encodeEntry(e)
		if err != nil {
			return datapath.ReadRangeOutput{}, err
		}
		out.Values = append(out.Values, entry)
	}
	return out, nil
}

// buildSelector applies the endpoint-promotion rules of §4.6.1 step 2–3:
// an "after" endpoint is promoted to exact by appending an empty bytes
// part (the smallest key strictly greater than the prefix); if the end
// is still "before" after promotion, the selector becomes a prefix scan.
func buildSelector(start, end tuple.RangeKey) (engine.Selector, error) {
	startKey := start.Key
	if start.Mode == tuple.ModeAfter {
		startKey = tuple.WithEmptyByteSuffix(startKey)
	}
	startEnc, err := tuple.Encode(startKey)
	if err != nil {
		return engine.Selector{}, apperrors.New(apperrors.CodeKeyDecode, err)
	}

	if end.Mode == tuple.ModeBefore {
		prefixEnc, err := tuple.Encode(end.Key)
		if err != nil {
			return engine.Selector{}, apperrors.New(apperrors.CodeKeyDecode, err)
		}
		return engine.Selector{Start: startEnc, Prefix: prefixEnc}, nil
	}

	endKey := end.Key
	if end.Mode == tuple.ModeAfter {
		endKey = tuple.WithEmptyByteSuffix(endKey)
	}
	endEnc, err := tuple.Encode(endKey)
	if err != nil {
		return engine.Selector{}, apperrors.New(apperrors.CodeKeyDecode, err)
	}
	return engine.Selector{Start: startEnc, End: endEnc}, nil
}

func encodeEntry(e engine.Entry) (datapath.KvEntry, error) {
	vsBytes, err := versionstampRawBytes(e.Versionstamp)
	if err != nil {
		return datapath.KvEntry{}, apperrors.New(apperrors.CodeEngineIO, err)
	}
	if err := envelope.Validate(e.Value); err != nil {
		return datapath.KvEntry{}, apperrors.New(apperrors.CodeValueDecode, err)
	}
	return datapath.KvEntry{
		Key:          e.Key,
		Value:        e.Value.Data,
		Encoding:     int32(e.Value.Encoding),
		Versionstamp: vsBytes,
	}, nil
}
