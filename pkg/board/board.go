// Package board implements the command board (C4): a per-command
// rendezvous point holding the execution result (ER) and after-sync
// result (ASR) for waiters, keyed by command id.
//
// The board is a lock-striped map per §5: each command id hashes to one
// of a fixed number of shards, each guarded by its own mutex, so waiters
// on unrelated commands never contend.
package board

import (
	"context"
	"fmt"
	"hash/maphash"
	"sync"

	"github.com/Kylemclean11/Xline/pkg/command"
)

const defaultShardCount = 32

// slot holds the results for one command id.
type slot struct {
	erSet  bool
	er     command.ExecResult
	erCh   chan struct{}
	asrSet bool
	asr    command.AfterSyncResult
	asrCh  chan struct{}
}

func newSlot() *slot {
	return &slot{erCh: make(chan struct{}), asrCh: make(chan struct{})}
}

type shard struct {
	mu    sync.Mutex
	slots map[command.ID]*slot
}

// Board is the lock-striped command board.
type Board struct {
	shards []shard
	seed   maphash.Seed
}

// New creates a board with the default shard count.
func New() *Board {
	return NewWithShards(defaultShardCount)
}

// NewWithShards creates a board with an explicit shard count, mostly
// useful for tests that want to force shard collisions.
func NewWithShards(n int) *Board {
	if n <= 0 {
		n = 1
	}
	b := &Board{shards: make([]shard, n), seed: maphash.MakeSeed()}
	for i := range b.shards {
		b.shards[i].slots = make(map[command.ID]*slot)
	}
	return b
}

func (b *Board) shardFor(id command.ID) *shard {
	var h maphash.Hash
	h.SetSeed(b.seed)
	_, _ = h.Write(id[:])
	return &b.shards[h.Sum64()%uint64(len(b.shards))]
}

func (b *Board) slotFor(id command.ID) *slot {
	sh := b.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s, ok := sh.slots[id]
	if !ok {
		s = newSlot()
		sh.slots[id] = s
	}
	return s
}

// SetER publishes the execution result for id, waking all ER waiters.
// Re-publishing with a different payload is a programmer-error fault;
// re-publishing the identical payload is a no-op, per §4.4's
// idempotence rule.
func (b *Board) SetER(id command.ID, er command.ExecResult) error {
	sh := b.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.slots[id]
	if !ok {
		s = newSlot()
		sh.slots[id] = s
	}
	if s.erSet {
		if !bytesEqual(s.er, er) {
			return fmt.Errorf("board: non-idempotent ER publish for %s", id)
		}
		return nil
	}
	s.er = er
	s.erSet = true
	close(s.erCh)
	return nil
}

// SetASR publishes the after-sync result for id, waking all ASR waiters.
func (b *Board) SetASR(id command.ID, asr command.AfterSyncResult) error {
	sh := b.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.slots[id]
	if !ok {
		s = newSlot()
		sh.slots[id] = s
	}
	if s.asrSet {
		if !bytesEqual(s.asr, asr) {
			return fmt.Errorf("board: non-idempotent ASR publish for %s", id)
		}
		return nil
	}
	s.asr = asr
	s.asrSet = true
	close(s.asrCh)
	return nil
}

// WaitER blocks until id's ER is published or ctx is done. Unlike a
// committed entry, an unpublished ER is never guaranteed to appear — a
// caller's deadline expiring here does not cancel the underlying
// command, per §4.6's backpressure note.
func (b *Board) WaitER(ctx context.Context, id command.ID) (command.ExecResult, error) {
	s := b.slotFor(id)
	select {
	case <-s.erCh:
		return s.er, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitASR blocks until id's ASR is published or ctx is done.
func (b *Board) WaitASR(ctx context.Context, id command.ID) (command.AfterSyncResult, error) {
	s := b.slotFor(id)
	select {
	case <-s.asrCh:
		return s.asr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ER returns the execution result for id if already published.
func (b *Board) ER(id command.ID) (command.ExecResult, bool) {
	sh := b.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s, ok := sh.slots[id]
	if !ok || !s.erSet {
		return nil, false
	}
	return s.er, true
}

// Exists reports whether a slot has been created for id, i.e. whether
// id has already been seen by the engine (used for Propose's duplicate
// detection in §4.6 step 1).
func (b *Board) Exists(id command.ID) bool {
	sh := b.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.slots[id]
	return ok
}

// Reap removes the entry for id. Callers should only reap once both ER
// and ASR have been observed by every known waiter, or a TTL has
// elapsed — the board itself does not track waiter counts, since
// waiters communicate only via the closed channels.
func (b *Board) Reap(id command.ID) {
	sh := b.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.slots, id)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
