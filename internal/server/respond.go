package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/clawlink/clawlink/internal/apperr"
)

// respond writes a success envelope. Payload keys are merged into the
// top-level object next to success.
func respond(w http.ResponseWriter, status int, payload map[string]any) {
	body := make(map[string]any, len(payload)+1)
	body["success"] = true
	for k, v := range payload {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// fail maps a service error to its HTTP status and a single-sentence body.
func fail(w http.ResponseWriter, log *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		log.Error("request failed", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(kind))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   apperr.Message(err),
	})
}

// decode parses a JSON request body into dst.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(apperr.Invalid, "malformed JSON body", err)
	}
	return nil
}
