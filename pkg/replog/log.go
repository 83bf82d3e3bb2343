// Package replog is the replicated command log (C2): a contiguous,
// in-memory sequence of entries with commit and apply cursors, guarded
// by a single exclusive lock per the engine's concurrency model (§5 —
// "the log is protected by a single exclusive lock; reads take it
// briefly").
//
// Storage is a plain slice with O(1) index-to-offset translation
// (offset = index - baseIndex - 1), the same layout used by the
// from-scratch raft logs in the example corpus
// (yusong-yan-MultiRaft/src/raft/log.go, moogacs-raft/raft.go).
package replog

import (
	"fmt"
	"sync"

	"github.com/Kylemclean11/Xline/pkg/command"
)

// Entry is a single log position.
type Entry struct {
	Term    uint64
	Index   uint64
	Command command.Command
}

// Log is the replicated command log. Indices are 1-based, strictly
// increasing and contiguous while live.
type Log struct {
	mu sync.Mutex

	entries []Entry // entries[i] has Index == baseIndex + 1 + i

	baseIndex uint64
	baseTerm  uint64

	commitIndex uint64
	lastApplied uint64

	commitNotify chan struct{}
}

// New creates an empty log with no committed entries.
func New() *Log {
	return &Log{commitNotify: make(chan struct{}, 1)}
}

// CommitNotify returns a channel that receives a (coalesced) signal
// whenever commit_index advances. The apply worker (C6) selects on it
// instead of polling CommitIndex in a busy loop.
func (l *Log) CommitNotify() <-chan struct{} {
	return l.commitNotify
}

func (l *Log) signalCommit() {
	select {
	case l.commitNotify <- struct{}{}:
	default:
	}
}

func (l *Log) offset(index uint64) (int, bool) {
	if index <= l.baseIndex {
		return 0, false
	}
	off := int(index - l.baseIndex - 1)
	if off < 0 || off >= len(l.entries) {
		return 0, false
	}
	return off, true
}

// LastIndex returns the index of the last live entry, or baseIndex if
// the log is empty.
func (l *Log) LastIndex() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastIndexLocked()
}

func (l *Log) lastIndexLocked() uint64 {
	return l.baseIndex + uint64(len(l.entries))
}

// LastTerm returns the term of the last live entry, or baseTerm if the
// log is empty.
func (l *Log) LastTerm() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return l.baseTerm
	}
	return l.entries[len(l.entries)-1].Term
}

// Append assigns the next contiguous index(es) to entries (leader path)
// and returns the new last index. The caller supplies the term; Append
// does not validate term monotonicity itself, since a leader always
// appends at its own current term and the role state machine is the
// term authority.
func (l *Log) Append(term uint64, cmds ...command.Command) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.lastIndexLocked() + 1
	for i, c := range cmds {
		l.entries = append(l.entries, Entry{Term: term, Index: next + uint64(i), Command: c})
	}
	return l.lastIndexLocked()
}

// AppendAt installs entries at explicit (term, index) pairs (follower
// path, from AppendEntries). It enforces Log Matching at the boundary:
// each entry's index must be exactly one past the current last index
// once any conflicting suffix has been truncated by the caller.
func (l *Log) AppendAt(entries []Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range entries {
		want := l.lastIndexLocked() + 1
		if e.Index != want {
			return fmt.Errorf("replog: non-contiguous append: got index %d, want %d", e.Index, want)
		}
		l.entries = append(l.entries, e)
	}
	return nil
}

// TruncateSuffix removes all entries with Index >= fromIndex (follower
// path, on log-inconsistency backtrack). It refuses to remove an entry
// already committed — invariant (c): a committed entry is never
// overwritten or truncated.
func (l *Log) TruncateSuffix(fromIndex uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if fromIndex <= l.commitIndex {
		return fmt.Errorf("replog: refusing to truncate committed entry at index %d (commit_index=%d)", fromIndex, l.commitIndex)
	}
	off, ok := l.offset(fromIndex)
	if !ok {
		if fromIndex > l.lastIndexLocked() {
			return nil // nothing to truncate
		}
		return fmt.Errorf("replog: truncate index %d before base %d", fromIndex, l.baseIndex)
	}
	l.entries = l.entries[:off]
	return nil
}

// Get returns the entry at index, if live.
func (l *Log) Get(index uint64) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	off, ok := l.offset(index)
	if !ok {
		return Entry{}, false
	}
	return l.entries[off], true
}

// TermAt returns the term of the entry at index. index == baseIndex
// returns baseTerm (the term "just before" the first live entry).
func (l *Log) TermAt(index uint64) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index == l.baseIndex {
		return l.baseTerm, true
	}
	off, ok := l.offset(index)
	if !ok {
		return 0, false
	}
	return l.entries[off].Term, true
}

// EntriesIn returns a copy of the entries in [lo, hi] inclusive.
func (l *Log) EntriesIn(lo, hi uint64) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lo < l.baseIndex+1 {
		lo = l.baseIndex + 1
	}
	last := l.lastIndexLocked()
	if hi > last {
		hi = last
	}
	if lo > hi {
		return nil
	}
	loOff, _ := l.offset(lo)
	hiOff, _ := l.offset(hi)
	out := make([]Entry, hiOff-loOff+1)
	copy(out, l.entries[loOff:hiOff+1])
	return out
}

// AdvanceCommit sets commit_index <- max(commit_index, min(n, last_index)).
// Monotonic: never moves commit_index backwards.
func (l *Log) AdvanceCommit(n uint64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	last := l.lastIndexLocked()
	if n > last {
		n = last
	}
	if n > l.commitIndex {
		l.commitIndex = n
		l.signalCommit()
	}
	return l.commitIndex
}

// CommitIndex returns the current commit index.
func (l *Log) CommitIndex() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commitIndex
}

// SetLastApplied records the highest index whose AfterSync has run.
// Callers must only ever increase it; this is enforced here to uphold
// invariant (d), last_applied <= commit_index, and apply monotonicity.
func (l *Log) SetLastApplied(index uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < l.lastApplied {
		return fmt.Errorf("replog: last_applied regression: %d < %d", index, l.lastApplied)
	}
	if index > l.commitIndex {
		return fmt.Errorf("replog: last_applied %d exceeds commit_index %d", index, l.commitIndex)
	}
	l.lastApplied = index
	return nil
}

// LastApplied returns the highest applied index.
func (l *Log) LastApplied() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastApplied
}

// Base returns the (index, term) pair just before the first live entry.
func (l *Log) Base() (index, term uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.baseIndex, l.baseTerm
}

// Compact discards all entries at or below toIndex, raising the log's
// base. Used both by ordinary snapshot compaction and by InstallSnapshot
// on the follower side. commit_index and last_applied are raised to at
// least toIndex, preserving invariant (e): commit_index >= base_index.
func (l *Log) Compact(toIndex, snapshotTerm uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if toIndex <= l.baseIndex {
		return
	}
	off, ok := l.offset(toIndex)
	if ok {
		l.entries = append([]Entry(nil), l.entries[off+1:]...)
	} else {
		// toIndex is beyond everything we have (e.g. snapshot
		// installed far ahead of our log): drop everything.
		l.entries = nil
	}
	l.baseIndex = toIndex
	l.baseTerm = snapshotTerm
	if l.commitIndex < toIndex {
		l.commitIndex = toIndex
	}
	if l.lastApplied < toIndex {
		l.lastApplied = toIndex
	}
}
