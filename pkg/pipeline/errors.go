package pipeline

import "errors"

// Sentinel errors returned by Propose, WaitSynced and FetchReadState,
// mirroring the wire error codes enumerated in the external interface.
var (
	// ErrNotLeader is returned by a follower for any operation only a
	// leader may serve. Callers should redirect to Leader().
	ErrNotLeader = errors.New("pipeline: not leader")

	// ErrBusy is returned when the bounded exe-worker queue is at
	// capacity. Replication and apply have no bounded queue of their own
	// and never produce it.
	ErrBusy = errors.New("pipeline: busy")

	// ErrShuttingDown is returned once the pipeline has begun graceful
	// shutdown; no new Propose calls are admitted.
	ErrShuttingDown = errors.New("pipeline: shutting down")

	// ErrEncoding is returned when the command codec fails to decode a
	// wire payload.
	ErrEncoding = errors.New("pipeline: encoding error")
)

// KeyConflictError reports that a Propose was routed to the slow path
// because it conflicts with one or more commands already admitted to
// the spec-pool.
type KeyConflictError struct {
	ConflictingIDs [][16]byte
}

func (e *KeyConflictError) Error() string {
	return "pipeline: key conflict with pending speculative command(s)"
}
