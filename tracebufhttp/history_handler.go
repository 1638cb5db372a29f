package tracebufhttp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/etsangsplk/tracebuf/internal/ringbuf"
)

// HistoryFunc returns the most recently completed packets for one writer
// sequence, oldest first.
type HistoryFunc func(producerID, writerID uint16) []ringbuf.Snapshot

// HistoryHandler serves recent packet history for a writer sequence,
// letting a stream subscriber that connects mid-stream see what it missed
// instead of only whatever arrives after it subscribes.
type HistoryHandler struct {
	History HistoryFunc
}

// NewHistoryHandler returns a HistoryHandler backed by historyFn.
func NewHistoryHandler(historyFn HistoryFunc) *HistoryHandler {
	return &HistoryHandler{History: historyFn}
}

func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is supported", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	producerID, err := strconv.ParseUint(query.Get("producer_id"), 10, 16)
	if err != nil {
		http.Error(w, "producer_id is required and must be a uint16", http.StatusBadRequest)
		return
	}
	writerID, err := strconv.ParseUint(query.Get("writer_id"), 10, 16)
	if err != nil {
		http.Error(w, "writer_id is required and must be a uint16", http.StatusBadRequest)
		return
	}

	snapshots := h.History(uint16(producerID), uint16(writerID))

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(snapshots); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
