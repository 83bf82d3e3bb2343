package consensus

import (
	"context"
	"time"

	"github.com/Kylemclean11/Xline/pkg/replog"
	"github.com/Kylemclean11/Xline/pkg/specpool"
)

// Role is one of Follower, Candidate, Leader.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// PeerID identifies a cluster member. Cluster membership is static at
// boot per §6.
type PeerID string

// VoteRequest is the Vote RPC request (§6).
type VoteRequest struct {
	Term         uint64
	CandidateID  PeerID
	LastLogIndex uint64
	LastLogTerm  uint64
	SpecPool     []specpool.Entry
}

// VoteResponse is the Vote RPC response.
type VoteResponse struct {
	Term        uint64
	VoteGranted bool
	SpecPool    []specpool.Entry
}

// AppendEntriesRequest is the AppendEntries RPC request (§6). SpecPool
// piggybacks the leader's current spec-pool snapshot on every
// heartbeat/replication round so followers keep a live mirror of
// fast-path-accepted commands (§4.3's pool invariant (g), "on any
// server, the pool reflects commands the server believes may have
// committed via the fast path") — this is what lets a newly elected
// leader recover a fast-path command a crashed leader never replicated
// (§4.5 leader-recovery, spec-pool recovery threshold).
type AppendEntriesRequest struct {
	Term         uint64
	LeaderID     PeerID
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []replog.Entry
	LeaderCommit uint64
	SpecPool     []specpool.Entry
}

// AppendEntriesResponse is the AppendEntries RPC response. HintIndex
// accelerates nextIndex backtracking on failure (§4.5).
type AppendEntriesResponse struct {
	Term      uint64
	Success   bool
	HintIndex uint64
}

// Transport is everything Node needs from the wire layer to talk to
// peers. The wire transport itself is an external collaborator per §1;
// this interface is the seam a concrete gRPC client (pkg/transport)
// binds to.
type Transport interface {
	SendVote(ctx context.Context, peer PeerID, req VoteRequest) (VoteResponse, error)
	SendAppendEntries(ctx context.Context, peer PeerID, req AppendEntriesRequest) (AppendEntriesResponse, error)
}

// Config configures a Node. Zero-value fields are replaced with the
// defaults from §6.
type Config struct {
	Self  PeerID
	Peers []PeerID // cluster members, excluding Self

	ElectionTimeoutBase time.Duration
	HeartbeatInterval   time.Duration

	// SpecPoolRecoveryThreshold is the fraction (in (1/2, 1]) of
	// returned vote-response spec-pools a command must appear in to
	// be recovered by a newly elected leader (§4.3, §4.5).
	SpecPoolRecoveryThreshold float64
}

func (c *Config) setDefaults() {
	if c.ElectionTimeoutBase <= 0 {
		c.ElectionTimeoutBase = 1000 * time.Millisecond
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 150 * time.Millisecond
	}
	if c.SpecPoolRecoveryThreshold <= 0.5 || c.SpecPoolRecoveryThreshold > 1 {
		c.SpecPoolRecoveryThreshold = 0.5 + 1.0/8
	}
}

// clusterSize is len(Peers) + 1 (Self).
func (c *Config) clusterSize() int { return len(c.Peers) + 1 }

// Majority returns the simple-majority quorum size for n servers.
func Majority(n int) int {
	return n/2 + 1
}

// SuperQuorum returns the CURP fast-path super-quorum size for n
// servers: floor(n/2) + floor(floor(n/2)/2) + 1, per §4.5. For n=5 this
// is 4 (> floor(3n/4), matching the glossary's "Super-quorum" entry).
func SuperQuorum(n int) int {
	half := n / 2
	return half + half/2 + 1
}
