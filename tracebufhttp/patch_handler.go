package tracebufhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/etsangsplk/tracebuf"
)

// PatchFunc submits one patch through whatever serializes access to the
// Buffer (cmd/tracebufd routes it through its dispatch loop) and reports
// whether the target chunk was still present to patch.
type PatchFunc func(ctx context.Context, producer tracebuf.ProducerID, writer tracebuf.WriterID, chunk tracebuf.ChunkID, offset int, value [4]byte) (bool, error)

// PatchRequest is the JSON body PatchHandler accepts. Value is exactly
// the 4 bytes ApplyPatch overwrites at Offset.
type PatchRequest struct {
	ProducerID tracebuf.ProducerID `json:"producer_id"`
	WriterID   tracebuf.WriterID   `json:"writer_id"`
	ChunkID    tracebuf.ChunkID    `json:"chunk_id"`
	Offset     int                 `json:"offset"`
	Value      [4]byte             `json:"value"`
}

// PatchResponse reports the outcome of a PatchRequest.
type PatchResponse struct {
	Applied bool `json:"applied"`
}

// PatchHandler is a debug endpoint alongside AppendHandler: it lets an
// operator (or a test) exercise ApplyPatch's late-arriving-size-field path
// over HTTP without a real producer transport.
type PatchHandler struct {
	Patch PatchFunc
}

// NewPatchHandler returns a PatchHandler backed by patchFn.
func NewPatchHandler(patchFn PatchFunc) *PatchHandler {
	return &PatchHandler{Patch: patchFn}
}

func (h *PatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST is supported", http.StatusMethodNotAllowed)
		return
	}

	var req PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}

	applied, err := h.Patch(r.Context(), req.ProducerID, req.WriterID, req.ChunkID, req.Offset, req.Value)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(PatchResponse{Applied: applied}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
