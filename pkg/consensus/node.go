package consensus

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/Kylemclean11/Xline/pkg/replog"
	"github.com/Kylemclean11/Xline/pkg/specpool"
)

// RecoveryFunc is invoked once, on the commit-index-agnostic moment a
// node becomes leader, with the commands recovered from a super-quorum
// of spec-pool snapshots (§4.3, §4.5) in deterministic command-id order.
// It is not invoked when no command qualifies. pkg/engine supplies this
// to append recovered commands to the log and kick replication — Node
// itself only decides which commands qualify.
type RecoveryFunc func(term uint64, recovered []specpool.Entry)

// StableStateSink persists current_term/voted_for so a restarted node
// never forgets a vote it has already cast (§5, §7). Supplied by
// pkg/engine, backed by pkg/storage.
type StableStateSink func(currentTerm uint64, votedFor PeerID, votedForSet bool)

// RoleChangeHook is invoked, outside any lock, whenever the node's role
// or term changes — on stepping down to Follower, starting a candidacy,
// or winning an election. Optional; used by pkg/engine to publish
// lifecycle events.
type RoleChangeHook func(role Role, term uint64)

// Node is the role state machine for one cluster member.
type Node struct {
	cfg        Config
	log        *replog.Log
	pool       *specpool.Pool
	transport  Transport
	onLeader     RecoveryFunc
	stableSink   StableStateSink
	onElection   func()
	onRoleChange RoleChangeHook
	rnd          *rand.Rand

	mu               sync.RWMutex
	role             Role
	currentTerm      uint64
	votedFor         PeerID
	votedForSet      bool
	leaderID         PeerID
	leaderIDSet      bool
	electionDeadline time.Time

	nextIndex  map[PeerID]uint64
	matchIndex map[PeerID]uint64

	cancelTerm context.CancelFunc

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Node starting as Follower in term 0.
func New(cfg Config, log *replog.Log, pool *specpool.Pool, transport Transport, onLeader RecoveryFunc) *Node {
	cfg.setDefaults()
	n := &Node{
		cfg:       cfg,
		log:       log,
		pool:      pool,
		transport: transport,
		onLeader:  onLeader,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano() + int64(len(cfg.Self)))),
		role:      Follower,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	n.resetElectionDeadlineLocked()
	return n
}

func (n *Node) randomizedElectionTimeout() time.Duration {
	base := n.cfg.ElectionTimeoutBase
	return base + time.Duration(n.rnd.Int63n(int64(base)))
}

func (n *Node) resetElectionDeadlineLocked() {
	n.electionDeadline = time.Now().Add(n.randomizedElectionTimeout())
}

// Role returns the current role.
func (n *Node) Role() Role {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.role
}

// Term returns the current term.
func (n *Node) Term() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.currentTerm
}

// IsLeader reports whether this node believes itself to be leader.
func (n *Node) IsLeader() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.role == Leader
}

// Leader returns the last known leader id, if any.
func (n *Node) Leader() (PeerID, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.leaderID, n.leaderIDSet
}

// Log returns the underlying replicated log.
func (n *Node) Log() *replog.Log { return n.log }

// ElectionDeadline returns the time at which this node will start a new
// election if it hasn't heard from a leader (Follower/Candidate). A
// leader does not run an election timer, so on a leader this is the
// deadline last set before it won, which is not advanced while it
// leads. Diagnostic only, surfaced on FetchLeader.
func (n *Node) ElectionDeadline() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.electionDeadline
}

// Pool returns the underlying speculative pool.
func (n *Node) Pool() *specpool.Pool { return n.pool }

// SetStableStateSink registers the callback used to persist
// current_term/voted_for across restarts. Must be called before Run;
// not safe to change concurrently with election activity.
func (n *Node) SetStableStateSink(sink StableStateSink) {
	n.mu.Lock()
	n.stableSink = sink
	n.mu.Unlock()
}

// RestoreStableState seeds current_term/voted_for from durable storage
// at startup. Unlike every other mutation of this state, it does not
// invoke the stable-state sink — the values are already persisted.
func (n *Node) RestoreStableState(currentTerm uint64, votedFor PeerID, votedForSet bool) {
	n.mu.Lock()
	n.currentTerm = currentTerm
	n.votedFor = votedFor
	n.votedForSet = votedForSet
	n.mu.Unlock()
}

// SetElectionHook registers a callback invoked once at the start of
// every candidacy attempt, for metrics/observability. Optional.
func (n *Node) SetElectionHook(hook func()) {
	n.mu.Lock()
	n.onElection = hook
	n.mu.Unlock()
}

// SetRoleChangeHook registers a callback invoked outside any lock on
// every role/term transition. Optional.
func (n *Node) SetRoleChangeHook(hook RoleChangeHook) {
	n.mu.Lock()
	n.onRoleChange = hook
	n.mu.Unlock()
}

// emitRoleChange reports the current role/term to the role-change hook,
// if one is registered. Must be called with n.mu NOT held.
func (n *Node) emitRoleChange() {
	n.mu.RLock()
	hook := n.onRoleChange
	role := n.role
	term := n.currentTerm
	n.mu.RUnlock()
	if hook != nil {
		hook(role, term)
	}
}

// persistStable reports the current term/vote to the stable-state sink,
// if one is registered. Must be called with n.mu NOT held, since the
// sink may perform blocking I/O (§7).
func (n *Node) persistStable() {
	n.mu.RLock()
	sink := n.stableSink
	term := n.currentTerm
	votedFor := n.votedFor
	votedForSet := n.votedForSet
	n.mu.RUnlock()
	if sink != nil {
		sink(term, votedFor, votedForSet)
	}
}

// stepDownLocked transitions to Follower at the given term. Per §5,
// "any observed term >= current bumps role to Follower before any
// other action" — callers must hold n.mu.
func (n *Node) stepDownLocked(term uint64) {
	if n.cancelTerm != nil {
		n.cancelTerm()
		n.cancelTerm = nil
	}
	n.role = Follower
	n.currentTerm = term
	n.votedForSet = false
	n.nextIndex = nil
	n.matchIndex = nil
	n.resetElectionDeadlineLocked()
}

// HandleVoteRequest implements the Vote RPC server side (§4.5 grant rule).
func (n *Node) HandleVoteRequest(req VoteRequest) VoteResponse {
	n.mu.Lock()

	stepped := false
	if req.Term > n.currentTerm {
		n.stepDownLocked(req.Term)
		stepped = true
	}
	if req.Term < n.currentTerm {
		resp := VoteResponse{Term: n.currentTerm, VoteGranted: false}
		n.mu.Unlock()
		if stepped {
			n.persistStable()
			n.emitRoleChange()
		}
		return resp
	}

	alreadyVotedForOther := n.votedForSet && n.votedFor != req.CandidateID
	if alreadyVotedForOther {
		resp := VoteResponse{Term: n.currentTerm, VoteGranted: false}
		n.mu.Unlock()
		if stepped {
			n.persistStable()
			n.emitRoleChange()
		}
		return resp
	}

	lastIndex := n.log.LastIndex()
	lastTerm := n.log.LastTerm()
	upToDate := req.LastLogTerm > lastTerm || (req.LastLogTerm == lastTerm && req.LastLogIndex >= lastIndex)
	if !upToDate {
		resp := VoteResponse{Term: n.currentTerm, VoteGranted: false}
		n.mu.Unlock()
		if stepped {
			n.persistStable()
			n.emitRoleChange()
		}
		return resp
	}

	n.votedFor = req.CandidateID
	n.votedForSet = true
	n.resetElectionDeadlineLocked()
	resp := VoteResponse{Term: n.currentTerm, VoteGranted: true, SpecPool: n.pool.Snapshot()}
	n.mu.Unlock()
	n.persistStable()
	if stepped {
		n.emitRoleChange()
	}
	return resp
}

// HandleAppendEntries implements the AppendEntries RPC server side.
func (n *Node) HandleAppendEntries(req AppendEntriesRequest) AppendEntriesResponse {
	n.mu.Lock()

	stepped := false
	if req.Term > n.currentTerm {
		n.stepDownLocked(req.Term)
		stepped = true
	}
	if req.Term < n.currentTerm {
		term := n.currentTerm
		n.mu.Unlock()
		if stepped {
			n.persistStable()
			n.emitRoleChange()
		}
		return AppendEntriesResponse{Term: term, Success: false}
	}

	n.role = Follower
	n.leaderID = req.LeaderID
	n.leaderIDSet = true
	n.resetElectionDeadlineLocked()
	term := n.currentTerm
	n.mu.Unlock()
	if stepped {
		n.persistStable()
		n.emitRoleChange()
	}
	n.pool.ReplaceFrom(req.SpecPool)

	if req.PrevLogIndex > 0 {
		got, ok := n.log.TermAt(req.PrevLogIndex)
		if !ok || got != req.PrevLogTerm {
			hint := n.conflictHint(req.PrevLogIndex)
			return AppendEntriesResponse{Term: term, Success: false, HintIndex: hint}
		}
	}

	if len(req.Entries) > 0 {
		if err := n.log.TruncateSuffix(req.Entries[0].Index); err != nil {
			// The conflicting suffix is already committed: this can
			// only happen against a stale/buggy leader. Reject
			// rather than violate invariant (c).
			return AppendEntriesResponse{Term: term, Success: false, HintIndex: n.log.CommitIndex() + 1}
		}
		if err := n.log.AppendAt(req.Entries); err != nil {
			return AppendEntriesResponse{Term: term, Success: false}
		}
	}

	n.log.AdvanceCommit(req.LeaderCommit)
	return AppendEntriesResponse{Term: term, Success: true}
}

// conflictHint returns the index a leader should retry from after a
// log-inconsistency rejection, accelerating backtracking per §4.5.
func (n *Node) conflictHint(prevLogIndex uint64) uint64 {
	last := n.log.LastIndex()
	if prevLogIndex > last {
		return last + 1
	}
	conflictTerm, ok := n.log.TermAt(prevLogIndex)
	if !ok {
		base, _ := n.log.Base()
		return base + 1
	}
	hint := prevLogIndex
	for hint > 1 {
		t, ok := n.log.TermAt(hint - 1)
		if !ok || t != conflictTerm {
			break
		}
		hint--
	}
	return hint
}

// Stop halts the node's background election/heartbeat loop.
func (n *Node) Stop() {
	close(n.stopCh)
	<-n.doneCh
}
