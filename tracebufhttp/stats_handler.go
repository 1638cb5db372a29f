// Package tracebufhttp is the operator-facing debug and introspection
// surface for a running tracebuf.Buffer: a stats endpoint, a streaming
// packet feed with its client, a recent-packet history endpoint, and debug
// append and patch endpoints. Nothing here is part of the producer-facing
// ingestion path; the append and patch handlers are debug entry points
// only.
package tracebufhttp

import (
	"encoding/json"
	"net/http"

	"github.com/etsangsplk/tracebuf"
)

// StatsFunc returns the buffer's current Stats snapshot. cmd/tracebufd
// supplies one that calls Buffer.Stats directly, without going through its
// dispatch loop, since Buffer.Stats is the one method safe to call without
// that indirection.
type StatsFunc func() tracebuf.Stats

// StatsHandler serves the latest Stats snapshot as JSON.
type StatsHandler struct {
	Stats StatsFunc
}

// NewStatsHandler returns a StatsHandler backed by statsFn.
func NewStatsHandler(statsFn StatsFunc) *StatsHandler {
	return &StatsHandler{Stats: statsFn}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is supported", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(h.Stats()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
