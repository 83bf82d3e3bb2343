// Package specpool implements the speculative pool (C3): the set of
// commands a server has accepted for the CURP fast path, keyed by
// command id, with conflict tracking.
//
// The pool has its own exclusive lock per §5; insertion and the conflict
// scan it requires are atomic with respect to each other.
package specpool

import (
	"bytes"
	"sort"
	"sync"

	"github.com/Kylemclean11/Xline/pkg/command"
)

// Entry is a single spec-pool admission.
type Entry struct {
	CmdID    command.ID
	Command  command.Command
	SpecTerm uint64
}

// Outcome is the result of TryInsert.
type Outcome int

const (
	// Accepted means cmd was admitted to the fast path.
	Accepted Outcome = iota
	// Conflict means cmd was rejected; TryInsert's second return value
	// names the existing entries it conflicts with.
	Conflict
)

// Pool is the speculative pool. Zero value is not usable; use New.
type Pool struct {
	mu      sync.Mutex
	entries map[command.ID]Entry
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{entries: make(map[command.ID]Entry)}
}

// TryInsert admits cmd iff no existing entry's key set intersects its
// own (invariant (f): no two pool entries conflict on a leader that has
// accepted them for the fast path).
func (p *Pool) TryInsert(cmd command.Command, specTerm uint64) (Outcome, []command.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entries[cmd.ID()]; exists {
		return Accepted, nil
	}

	var conflicting []command.ID
	for id, e := range p.entries {
		if command.Conflicts(cmd, e.Command) {
			conflicting = append(conflicting, id)
		}
	}
	if len(conflicting) > 0 {
		sort.Slice(conflicting, func(i, j int) bool { return bytes.Compare(conflicting[i][:], conflicting[j][:]) < 0 })
		return Conflict, conflicting
	}

	p.entries[cmd.ID()] = Entry{CmdID: cmd.ID(), Command: cmd, SpecTerm: specTerm}
	return Accepted, nil
}

// Remove deletes the entry for id, if present. Called on
// commit-confirmation (the command reached AfterSync).
func (p *Pool) Remove(id command.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, id)
}

// Conflicting returns the ids of entries whose keys intersect the given
// key set, without mutating the pool. Used by FetchReadState (C8).
func (p *Pool) Conflicting(keys []command.Key) []command.ID {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []command.ID
	for id, e := range p.entries {
		if command.ConflictsKeys(keys, e.Command.Keys()) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// Len returns the number of entries currently admitted.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Snapshot returns the current entries, serialized, for inclusion in a
// VoteResponse. The returned slice is a defensive copy.
func (p *Pool) Snapshot() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].CmdID[:], out[j].CmdID[:]) < 0 })
	return out
}

// IDs returns the set of command ids currently in the pool.
func (p *Pool) IDs() []command.ID {
	snap := p.Snapshot()
	ids := make([]command.ID, len(snap))
	for i, e := range snap {
		ids[i] = e.CmdID
	}
	return ids
}

// ReplaceFrom merges another pool's serialized entries into this one,
// keeping only entries that do not conflict with what is already
// present or with each other. Ties (two incoming entries that conflict
// with one another) are broken in favor of the lower command id, per
// §4.3's deterministic tie-break rule. Used by a follower to merge the
// spec-pool snapshot carried on each AppendEntries from the leader.
func (p *Pool) ReplaceFrom(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].CmdID[:], entries[j].CmdID[:]) < 0 })

	p.mu.Lock()
	defer p.mu.Unlock()

	merged := make(map[command.ID]Entry, len(p.entries))
	for id, e := range p.entries {
		merged[id] = e
	}

	for _, cand := range entries {
		if _, exists := merged[cand.CmdID]; exists {
			continue
		}
		conflicted := false
		for _, existing := range merged {
			if command.Conflicts(cand.Command, existing.Command) {
				conflicted = true
				break
			}
		}
		if !conflicted {
			merged[cand.CmdID] = cand
		}
	}

	p.entries = merged
}
