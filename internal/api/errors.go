package api

import (
	"encoding/json"
	"net/http"

	"github.com/Ap3pp3rs94/kvrelay/internal/apperrors"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError renders code as a JSON error body with the status and
// WWW-Authenticate header §7's mapping requires, the way
// Chartly2.0's gateway router renders its own error envelope.
func writeError(w http.ResponseWriter, code apperrors.Code, message string) {
	meta := apperrors.Lookup(code)
	if meta.WWWAuthenticate {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(meta.Status)
	var eb errorBody
	eb.Error.Code = string(code)
	eb.Error.Message = message
	_ = json.NewEncoder(w).Encode(eb)
}
