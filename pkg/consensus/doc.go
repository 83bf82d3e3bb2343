/*
Package consensus implements the Raft-like role state machine (C5):
Follower/Candidate/Leader transitions, elections with CURP's super-quorum
rule, AppendEntries replication, and vote granting.

# Architecture

	┌───────────────────────── consensus.Node ─────────────────────────┐
	│                                                                    │
	│   ┌───────────┐  election timeout   ┌────────────┐  super-quorum │
	│   │ Follower  │ ───────────────────▶│ Candidate  │ ───votes─────▶│ Leader │
	│   └───────────┘◀─────────────────── └────────────┘◀───higher term┘
	│         ▲  higher term observed            │                      │
	│         └────────────────────────────────────────────────────────┘
	│                                                                    │
	│   role / currentTerm / votedFor / leaderID   (single exclusive    │
	│   lock; rare transitions)                                         │
	│                                                                    │
	│   per-follower: nextIndex / matchIndex, owned by one replication  │
	│   goroutine each, talking over a Transport (out of scope — an    │
	│   injected interface standing in for the wire)                    │
	└────────────────────────────────────────────────────────────────────┘

Election timeout is uniform in [base, 2*base); heartbeat interval is
< base/3, matching §4.5. A vote is granted iff the candidate's term is
at least ours, we have not already voted for someone else this term, and
the candidate's log is at least as up to date as ours.

On becoming leader, Node gathers the spec-pool snapshots carried in vote
responses (§4.3/§4.5's recovery step) and appends any command observed in
at least SpecPoolRecoveryThreshold of the super-quorum's pools to its log,
in deterministic command-id order, guaranteeing no fast-path-committed
command is lost (S3).

Grounded in the ticker/StartElection/BroadcastAppend loop shape of
yusong-yan-MultiRaft/src/raft/raft.go and srkaysh-Key-Value-store's
raft.go, generalized with the spec-pool-aware recovery and super-quorum
arithmetic this protocol adds on top of plain Raft.
*/
package consensus
