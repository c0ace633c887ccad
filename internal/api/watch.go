package api

import (
	"encoding/binary"
	"net/http"

	"github.com/Ap3pp3rs94/kvrelay/internal/apperrors"
	"github.com/Ap3pp3rs94/kvrelay/internal/datapath"
	"github.com/Ap3pp3rs94/kvrelay/internal/relay"
)

// flusherFrameWriter writes one length-framed WatchOutput payload per
// call and flushes immediately, so a slow/idle watch doesn't sit
// buffered behind net/http's default response buffering.
type flusherFrameWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw *flusherFrameWriter) WriteFrame(b []byte) error {
	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(b)))
	if _, err := fw.w.Write(lenPrefix[:]); err != nil {
		return err
	}
	if _, err := fw.w.Write(b); err != nil {
		return err
	}
	fw.f.Flush()
	return nil
}

// handleWatch implements §4.6.3/§6.1: a lazy, potentially-infinite
// framed stream that ends only on client disconnect or an engine error.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, apperrors.CodeWireDecode, "failed to read request body")
		return
	}

	req, err := datapath.DecodeWatch(body)
	if err != nil {
		writeError(w, apperrors.CodeWireDecode, "malformed WatchRequest")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.CodeInternal, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	fw := &flusherFrameWriter{w: w, f: flusher}
	if err := relay.Watch(r.Context(), s.store, req, fw); err != nil {
		// Headers are already sent; log and close rather than attempt a
		// second response.
		s.log.Error(r.Context(), "watch stream error", map[string]any{"cause": err.Error()})
	}
}
