package relay

import (
	"context"

	"github.com/Ap3pp3rs94/kvrelay/internal/apperrors"
	"github.com/Ap3pp3rs94/kvrelay/internal/datapath"
	"github.com/Ap3pp3rs94/kvrelay/internal/engine"
)

// FrameWriter receives one framed WatchOutput payload at a time; the
// HTTP handler implements this over its http.ResponseWriter/Flusher so
// the translation in this package stays transport-agnostic.
type FrameWriter interface {
	WriteFrame(b []byte) error
}

// Watch implements §4.6.3: open an engine watch over the requested
// keys, and for every batch the engine produces, translate it into a
// WatchOutput and push it to fw — one batch in, one frame out, with no
// buffering beyond what's in flight to fw.WriteFrame.
//
// Watch blocks until ctx is cancelled (client disconnect) or the engine
// watch errs.
func Watch(ctx context.Context, store engine.Store, req datapath.Watch, fw FrameWriter) error {
	keys := make([][]byte, len(req.Keys))
	for i, k := range req.Keys {
		keys[i] = k.Key
	}

	stream, err := store.Watch(ctx, keys)
	if err != nil {
		return apperrors.New(apperrors.CodeEngineIO, err)
	}
	defer stream.Close()

	for {
		batch, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil // client disconnect: a clean stream end, not an error
			}
			return apperrors.New(apperrors.CodeEngineIO, err)
		}

		out, err := encodeWatchOutput(batch)
		if err != nil {
			return err
		}
		if err := fw.WriteFrame(datapath.EncodeWatchOutput(out)); err != nil {
			return err
		}
	}
}

func encodeWatchOutput(batch []engine.KeyChange) (datapath.WatchOutput, error) {
	out := datapath.WatchOutput{Status: datapath.SRSuccess}
	for _, kc := range batch {
		wko := datapath.WatchKeyOutput{Changed: kc.Changed}
		if kc.Entry != nil {
			entry, err := encodeEntry(*kc.Entry)
			if err != nil {
				return datapath.WatchOutput{}, err
			}
			wko.EntryIfChanged = &entry
		}
		out.Keys = append(out.Keys, wko)
	}
	return out, nil
}
