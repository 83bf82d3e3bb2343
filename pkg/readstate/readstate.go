// Package readstate implements the read-state tracker (C8): answering
// FetchReadState with either the commit index a client must wait to
// observe, or the set of spec-pool command ids a read conflicts with.
//
// Grounded in the ReadIndex-style linearizable-read pattern used by
// srkaysh-Key-Value-store and yusong-yan-MultiRaft's kvraft layer,
// adapted to CURP's spec-pool-aware variant (§4.8): a read can be
// satisfied by waiting on specific pending commands instead of always
// waiting for a fresh commit round-trip.
package readstate

import (
	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/Kylemclean11/Xline/pkg/replog"
	"github.com/Kylemclean11/Xline/pkg/specpool"
)

// Kind discriminates the two FetchReadState response variants.
type Kind int

const (
	// KindCommitIndex means the caller must wait until after_sync of
	// Index has been observed before issuing the read.
	KindCommitIndex Kind = iota
	// KindIDs means the caller must wait for every command in IDs to
	// reach ASR before issuing the read.
	KindIDs
)

// Response is the result of FetchReadState. Exactly one of Index (when
// Kind == KindCommitIndex) or IDs (when Kind == KindIDs) is meaningful.
type Response struct {
	Kind  Kind
	Index uint64
	IDs   []command.ID
}

// Tracker answers FetchReadState for a single command against the
// current log and spec-pool state. It holds no state of its own — it is
// a thin, stateless view over the log and spec-pool, matching §4.8's
// description of FetchReadState as a pure function of engine state at
// the moment of the call.
type Tracker struct {
	log  *replog.Log
	pool *specpool.Pool
}

// New creates a Tracker over the given log and spec-pool.
func New(log *replog.Log, pool *specpool.Pool) *Tracker {
	return &Tracker{log: log, pool: pool}
}

// FetchReadState implements §4.8. If cmd's keys conflict with any
// currently pending spec-pool entry, the caller must wait for those
// specific commands to reach ASR (KindIDs); otherwise the caller may
// proceed once it has observed after_sync up to the current commit
// index (KindCommitIndex).
func (t *Tracker) FetchReadState(cmd command.Command) Response {
	if ids := t.pool.Conflicting(cmd.Keys()); len(ids) > 0 {
		return Response{Kind: KindIDs, IDs: ids}
	}
	return Response{Kind: KindCommitIndex, Index: t.log.CommitIndex()}
}
