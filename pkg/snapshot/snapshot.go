// Package snapshot implements the snapshot engine (C7): chunked
// InstallSnapshot stream assembly on the receiving side, and log
// compaction at a stable prefix on the taking side.
//
// Grounded in the WarrenSnapshot.Persist/Restore split in
// cuemby-warren/pkg/manager/fsm.go (a point-in-time Snapshot() producing
// an opaque payload, later fed back through Restore()), generalized to
// CURP's own state machine boundary and its streamed, resumable-only-
// from-zero InstallSnapshot RPC (§4.7).
package snapshot

import (
	"fmt"

	"github.com/Kylemclean11/Xline/pkg/log"
	"github.com/Kylemclean11/Xline/pkg/metrics"
	"github.com/Kylemclean11/Xline/pkg/replog"
	"github.com/Kylemclean11/Xline/pkg/storage"
)

// StateMachine is the application boundary the snapshot engine drives:
// a point-in-time serialization of the application's committed state,
// and an atomic replace from a previously serialized payload.
type StateMachine interface {
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

// Chunk is one piece of an InstallSnapshot stream (§6).
type Chunk struct {
	Term              uint64
	LeaderID          string
	LastIncludedIndex uint64
	LastIncludedTerm  uint64
	Offset            uint64
	Data              []byte
	Done              bool
}

// Assembler accumulates an in-progress InstallSnapshot stream on the
// receiving side. It is not safe for concurrent use by more than one
// caller at a time — InstallSnapshot is a single long-lived RPC stream
// per §6, so there is exactly one writer.
type Assembler struct {
	log   *replog.Log
	state StateMachine
	store storage.Store

	inProgress bool
	wantOffset uint64
	buf        []byte
	meta       Chunk
}

// New creates an Assembler over the given log, application state
// machine and durable store.
func New(l *replog.Log, state StateMachine, store storage.Store) *Assembler {
	return &Assembler{log: l, state: state, store: store}
}

// Feed applies one chunk of an InstallSnapshot stream. Chunks must
// arrive in increasing offset order; a chunk with offset 0 (re)starts
// the stream, matching §4.7's "interrupted streams are restarted from
// offset 0" rule — there is no partial resumption.
func (a *Assembler) Feed(c Chunk) error {
	if c.Offset == 0 {
		a.inProgress = true
		a.wantOffset = 0
		a.buf = nil
		a.meta = c
	}
	if !a.inProgress {
		return fmt.Errorf("snapshot: chunk received with no stream in progress (offset=%d)", c.Offset)
	}
	if c.Offset != a.wantOffset {
		a.inProgress = false
		return fmt.Errorf("snapshot: out-of-order chunk: got offset %d, want %d", c.Offset, a.wantOffset)
	}

	a.buf = append(a.buf, c.Data...)
	a.wantOffset += uint64(len(c.Data))

	if !c.Done {
		return nil
	}

	return a.install(c)
}

// install atomically replaces the state machine and advances the log's
// base, per §4.7's completion rule: on done, replace state, set
// base_index/base_term, truncate any conflicting suffix, and set
// commit_index = last_applied = last_included_index.
func (a *Assembler) install(c Chunk) error {
	if err := a.state.Restore(a.buf); err != nil {
		a.inProgress = false
		return fmt.Errorf("snapshot: restore failed: %w", err)
	}

	if t, ok := a.log.TermAt(c.LastIncludedIndex); ok && t != c.LastIncludedTerm {
		if err := a.log.TruncateSuffix(c.LastIncludedIndex + 1); err != nil {
			log.Logger.Warn().Err(err).Msg("snapshot install: could not drop conflicting log suffix")
		}
	}
	a.log.Compact(c.LastIncludedIndex, c.LastIncludedTerm)
	if err := a.log.SetLastApplied(c.LastIncludedIndex); err != nil {
		log.Logger.Warn().Err(err).Msg("snapshot install: last_applied already past snapshot index")
	}

	if a.store != nil {
		if err := a.store.SaveSnapshot(storage.SnapshotRecord{
			LastIncludedIndex: c.LastIncludedIndex,
			LastIncludedTerm:  c.LastIncludedTerm,
			Data:              a.buf,
		}); err != nil {
			log.Logger.Error().Err(err).Msg("snapshot install: failed to persist")
		}
	}

	a.inProgress = false
	a.buf = nil
	return nil
}

// Taker drives the sending side: on demand, snapshot the state machine
// at a stable prefix and compact the log up to it.
type Taker struct {
	log   *replog.Log
	state StateMachine
	store storage.Store
}

// NewTaker creates a Taker over the given log, state machine and store.
func NewTaker(l *replog.Log, state StateMachine, store storage.Store) *Taker {
	return &Taker{log: l, state: state, store: store}
}

// TakeAt snapshots the state machine and compacts the log up to and
// including upToIndex, which the caller must guarantee is <= the
// current last_applied — taking a snapshot ahead of what has actually
// been applied would lose uncommitted-but-now-unrecoverable entries.
func (t *Taker) TakeAt(upToIndex uint64) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SnapshotDuration)

	if upToIndex > t.log.LastApplied() {
		return fmt.Errorf("snapshot: cannot snapshot at index %d, last_applied is %d", upToIndex, t.log.LastApplied())
	}
	term, ok := t.log.TermAt(upToIndex)
	if !ok {
		return fmt.Errorf("snapshot: no term recorded for index %d", upToIndex)
	}

	data, err := t.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: state machine snapshot failed: %w", err)
	}

	if t.store != nil {
		if err := t.store.SaveSnapshot(storage.SnapshotRecord{LastIncludedIndex: upToIndex, LastIncludedTerm: term, Data: data}); err != nil {
			return fmt.Errorf("snapshot: persist failed: %w", err)
		}
	}

	t.log.Compact(upToIndex, term)
	return nil
}

// Chunks splits a snapshot payload into a stream of Chunks no larger
// than chunkSize each, for the leader side of InstallSnapshot.
func Chunks(term uint64, leaderID string, lastIncludedIndex, lastIncludedTerm uint64, data []byte, chunkSize int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = 1 << 20
	}
	if len(data) == 0 {
		return []Chunk{{
			Term: term, LeaderID: leaderID,
			LastIncludedIndex: lastIncludedIndex, LastIncludedTerm: lastIncludedTerm,
			Offset: 0, Data: nil, Done: true,
		}}
	}

	var chunks []Chunk
	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, Chunk{
			Term: term, LeaderID: leaderID,
			LastIncludedIndex: lastIncludedIndex, LastIncludedTerm: lastIncludedTerm,
			Offset: uint64(offset), Data: data[offset:end], Done: end == len(data),
		})
	}
	return chunks
}
