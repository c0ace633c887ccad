package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/Ap3pp3rs94/kvrelay/internal/apperrors"
	"github.com/Ap3pp3rs94/kvrelay/internal/datapath"
	"github.com/Ap3pp3rs94/kvrelay/internal/relay"
)

// maxBodyBytes bounds a single request body; the datapath protocol has no
// built-in framing limit, so the relay enforces one rather than letting
// a hostile or broken client exhaust memory.
const maxBodyBytes = 64 << 20

func readBody(r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxBodyBytes {
		return nil, errors.New("api: request body exceeds size limit")
	}
	return b, nil
}

func (s *Server) handleSnapshotRead(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, apperrors.CodeWireDecode, "failed to read request body")
		return
	}

	req, err := datapath.DecodeSnapshotRead(body)
	if err != nil {
		writeError(w, apperrors.CodeWireDecode, "malformed SnapshotReadRequest")
		return
	}

	out, err := relay.SnapshotRead(r.Context(), s.store, req)
	if err != nil {
		s.writeRelayError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(datapath.EncodeSnapshotReadOutput(out))
}

func (s *Server) handleAtomicWrite(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, apperrors.CodeWireDecode, "failed to read request body")
		return
	}

	req, err := datapath.DecodeAtomicWrite(body)
	if err != nil {
		writeError(w, apperrors.CodeWireDecode, "malformed AtomicWriteRequest")
		return
	}

	out, err := relay.AtomicWrite(r.Context(), s.store, req)
	if err != nil {
		s.writeRelayError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(datapath.EncodeAtomicWriteOutput(out))
}

// writeRelayError unwraps an *apperrors.Error returned from the relay
// package and renders it; anything else is logged and reported as an
// opaque internal error, never leaking raw internals to the client.
func (s *Server) writeRelayError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		s.log.Error(r.Context(), "relay error", map[string]any{"code": string(appErr.Code), "cause": appErr.Error()})
		writeError(w, appErr.Code, string(appErr.Code))
		return
	}
	s.log.Error(r.Context(), "internal error", map[string]any{"cause": err.Error()})
	writeError(w, apperrors.CodeInternal, "internal error")
}
