package tracebuf

// Config configures a Buffer at construction time. The zero value is not
// valid; New validates it and rejects it.
type Config struct {
	// SizeBytes is the total capacity of the store, rounded up to a
	// multiple of 16 bytes. Must be at least MinStoreSize.
	SizeBytes int

	// MaxChunkPayload bounds the payload size Append will accept, matching
	// the surrounding service's own MAX_CHUNK_PAYLOAD limit. Zero means no
	// limit beyond what the store's capacity itself enforces.
	MaxChunkPayload int

	// AllowMalformedPackets makes a Reader keep the packets it decoded
	// before a chunk's invalid framing, instead of discarding the whole
	// chunk and counting it as malformed, so fuzzing and adversary tests can
	// drive the buffer end-to-end. This corresponds to SUPPRESS_SANITY_CHECKS.
	// Leave false in production.
	AllowMalformedPackets bool
}

func (cfg Config) validate() []error {
	var errs []error
	if cfg.SizeBytes < MinStoreSize {
		errs = append(errs, ErrInvalidConfig)
	}
	return errs
}
