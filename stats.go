package tracebuf

import "sync/atomic"

// Counters are the monotonically increasing, 64-bit wrap-safe counters the
// buffer exposes read-only. They are laid out the way a PoolCounters-style
// struct is for a sync.Pool: one atomic field per thing worth counting,
// with a Snapshot method that reads them all at once for reporting.
type Counters struct {
	ChunksWritten                        atomic.Uint64
	ChunksOverwritten                    atomic.Uint64
	BytesOverwritten                     atomic.Uint64
	ChunksDiscardedMalformed             atomic.Uint64
	ChunksDiscardedDuplicateID           atomic.Uint64
	FragmentsDroppedOrphan               atomic.Uint64
	FragmentsDroppedSuccessorOverwritten atomic.Uint64
	PatchesApplied                       atomic.Uint64
	PatchesRejected                      atomic.Uint64
	PatchesRejectedNotFound              atomic.Uint64
	PatchesRejectedOutOfBounds           atomic.Uint64
	SchedSwitchOutOfOrder                atomic.Uint64
}

// Stats is a point-in-time snapshot of a Buffer's Counters, suitable for
// marshaling (e.g. to JSON for the tracebufhttp debug surface) or for
// comparing in tests.
type Stats struct {
	InstanceID                            string `json:"instance_id"`
	ChunksWritten                         uint64 `json:"chunks_written"`
	ChunksOverwritten                     uint64 `json:"chunks_overwritten"`
	BytesOverwritten                      uint64 `json:"bytes_overwritten"`
	ChunksDiscardedMalformed              uint64 `json:"chunks_discarded_malformed"`
	ChunksDiscardedDuplicateID            uint64 `json:"chunks_discarded_duplicate_id"`
	FragmentsDroppedOrphan                uint64 `json:"fragments_dropped_orphan"`
	FragmentsDroppedSuccessorOverwritten  uint64 `json:"fragments_dropped_successor_overwritten"`
	PatchesApplied                        uint64 `json:"patches_applied"`
	PatchesRejected                       uint64 `json:"patches_rejected"`
	PatchesRejectedNotFound               uint64 `json:"patches_rejected_not_found"`
	PatchesRejectedOutOfBounds            uint64 `json:"patches_rejected_out_of_bounds"`
	SchedSwitchOutOfOrder                 uint64 `json:"sched_switch_out_of_order"`
}

// Snapshot reads every counter and returns them as a plain Stats value.
func (c *Counters) Snapshot(instanceID string) Stats {
	return Stats{
		InstanceID:                           instanceID,
		ChunksWritten:                        c.ChunksWritten.Load(),
		ChunksOverwritten:                    c.ChunksOverwritten.Load(),
		BytesOverwritten:                     c.BytesOverwritten.Load(),
		ChunksDiscardedMalformed:             c.ChunksDiscardedMalformed.Load(),
		ChunksDiscardedDuplicateID:           c.ChunksDiscardedDuplicateID.Load(),
		FragmentsDroppedOrphan:               c.FragmentsDroppedOrphan.Load(),
		FragmentsDroppedSuccessorOverwritten: c.FragmentsDroppedSuccessorOverwritten.Load(),
		PatchesApplied:                       c.PatchesApplied.Load(),
		PatchesRejected:                      c.PatchesRejected.Load(),
		PatchesRejectedNotFound:              c.PatchesRejectedNotFound.Load(),
		PatchesRejectedOutOfBounds:           c.PatchesRejectedOutOfBounds.Load(),
		SchedSwitchOutOfOrder:                c.SchedSwitchOutOfOrder.Load(),
	}
}
