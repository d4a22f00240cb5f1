package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/apresai/ttsgateway/internal/gwerr"
)

// errorBody is the JSON shape every error response carries, per spec.md §7.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// writeError classifies err as a *gwerr.Error (defaulting to Internal for
// anything else) and writes its mapped HTTP status with a JSON body.
// Internal errors never leak the underlying cause in the response.
func writeError(w http.ResponseWriter, err error) {
	kind := gwerr.Internal
	message := "internal error"
	public := ""
	if ge, ok := gwerr.As(err); ok {
		kind = ge.Kind
		message = ge.Message
		public = ge.Public
	}
	if public == "" {
		public = kind.Phrase()
	}
	writeErrorKind(w, kind, public, message)
}

func writeErrorKind(w http.ResponseWriter, kind gwerr.Kind, public, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.Status())
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:     public,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
