package tracebufhttp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/etsangsplk/tracebuf"
)

// AppendFunc submits one chunk through whatever serializes access to the
// Buffer (cmd/tracebufd routes it through its dispatch loop) and reports
// how many bytes were accepted.
type AppendFunc func(ctx context.Context, producer tracebuf.ProducerID, writer tracebuf.WriterID, chunk tracebuf.ChunkID, flags tracebuf.ChunkFlags, payload []byte) (int, error)

// AppendRequest is the JSON body AppendHandler accepts. Payload is
// base64-encoded since chunk payloads are arbitrary bytes, not text.
type AppendRequest struct {
	ProducerID tracebuf.ProducerID `json:"producer_id"`
	WriterID   tracebuf.WriterID   `json:"writer_id"`
	ChunkID    tracebuf.ChunkID    `json:"chunk_id"`
	Flags      tracebuf.ChunkFlags `json:"flags"`
	Payload    string              `json:"payload"`
}

// AppendResponse reports the outcome of an AppendRequest.
type AppendResponse struct {
	Written int `json:"written"`
}

// AppendHandler is a debug ingestion endpoint: it lets an operator (or a
// test) push a chunk into the buffer over HTTP without a real producer
// transport. It stays firmly within the debug/introspection surface this
// package otherwise serves — no flow control, no backpressure protocol,
// just a direct call into Append.
type AppendHandler struct {
	Append AppendFunc
}

// NewAppendHandler returns an AppendHandler backed by appendFn.
func NewAppendHandler(appendFn AppendFunc) *AppendHandler {
	return &AppendHandler{Append: appendFn}
}

func (h *AppendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST is supported", http.StatusMethodNotAllowed)
		return
	}

	var req AppendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		http.Error(w, fmt.Sprintf("decode payload: %v", err), http.StatusBadRequest)
		return
	}

	n, err := h.Append(r.Context(), req.ProducerID, req.WriterID, req.ChunkID, req.Flags, payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(AppendResponse{Written: n}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
