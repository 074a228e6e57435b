package server

import (
	"net/http"
)

// ServeHTTP routes /ws to the websocket stream and /snapshot to the last
// published snapshot.
func (t *Telemetry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ws":
		t.handleWebSocket(w, r)
	case "/snapshot":
		t.handleSnapshot(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (t *Telemetry) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := t.auth.Authorize(r); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	payload, err := t.Latest()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}
