/*
Package storage provides BoltDB-backed durability for the consensus
engine's stable role state and snapshot payload (C10).

Unlike the replicated log, which is kept entirely in memory (pkg/replog),
current_term/voted_for and the latest snapshot must survive a process
restart: a node that forgets a vote it already cast, or replies from a
stale snapshot, can violate the protocol's safety guarantees.

# Architecture

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            BoltStore                        │          │
	│  │  - File: <dataDir>/curp.db                  │          │
	│  │  - Format: B+tree with MVCC                 │          │
	│  │  - Transactions: ACID with fsync            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Bucket Structure                │          │
	│  │  ┌────────────────────────────┐             │          │
	│  │  │ stable   (current_term,    │             │          │
	│  │  │          voted_for)        │             │          │
	│  │  │ snapshot (meta, data)       │             │          │
	│  │  └────────────────────────────┘             │          │
	│  └────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────────┘

Writes go through db.Update (serialized, fsync on commit); reads through
db.View (concurrent, MVCC snapshot). Both buckets are created eagerly on
open so callers never need a "does this bucket exist" check.

# Usage

	store, err := storage.NewBoltStore(dataDir)
	if err != nil { ... }
	defer store.Close()

	state, err := store.LoadStableState()
	// ... node starts from state.CurrentTerm / state.VotedFor ...
	err = store.SaveStableState(storage.StableState{CurrentTerm: 5, VotedFor: "b", VotedForSet: true})

	rec, ok, err := store.LoadSnapshot()
	err = store.SaveSnapshot(storage.SnapshotRecord{LastIncludedIndex: 100, LastIncludedTerm: 3, Data: payload})

Only the latest snapshot generation is ever retained: an interrupted
InstallSnapshot stream is restarted from offset 0 by the snapshot engine
(pkg/snapshot), so there is never a partial generation worth keeping.
*/
package storage
