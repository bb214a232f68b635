package http

import (
	"encoding/json"
	"net/http"
)

// StatusFunc returns the JSON body served at /status.
type StatusFunc func() any

// NewRouter serves health, pipeline status and the caption websocket.
func NewRouter(captions http.HandlerFunc, status StatusFunc) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if status == nil {
			writeJSON(w, map[string]any{})
			return
		}
		writeJSON(w, status())
	})
	if captions != nil {
		mux.HandleFunc("/ws/captions", captions)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
