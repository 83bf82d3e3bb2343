package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/Kylemclean11/Xline/pkg/command/kvcommand"
	"github.com/Kylemclean11/Xline/pkg/replog"
	"github.com/Kylemclean11/Xline/pkg/specpool"
	"github.com/stretchr/testify/require"
)

// fakeTransport routes RPCs directly to in-process Node handlers, keyed
// by peer id, so election/replication logic can be exercised without a
// real network.
type fakeTransport struct {
	nodes map[PeerID]*Node
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nodes: make(map[PeerID]*Node)}
}

func (t *fakeTransport) SendVote(ctx context.Context, peer PeerID, req VoteRequest) (VoteResponse, error) {
	n, ok := t.nodes[peer]
	if !ok {
		return VoteResponse{}, errPeerUnknown
	}
	return n.HandleVoteRequest(req), nil
}

func (t *fakeTransport) SendAppendEntries(ctx context.Context, peer PeerID, req AppendEntriesRequest) (AppendEntriesResponse, error) {
	n, ok := t.nodes[peer]
	if !ok {
		return AppendEntriesResponse{}, errPeerUnknown
	}
	return n.HandleAppendEntries(req), nil
}

type peerUnknownError struct{}

func (peerUnknownError) Error() string { return "consensus: unknown peer" }

var errPeerUnknown = peerUnknownError{}

func newTestNode(self PeerID, peers []PeerID, transport Transport, onLeader RecoveryFunc) *Node {
	cfg := Config{
		Self:                self,
		Peers:               peers,
		ElectionTimeoutBase: 20 * time.Millisecond,
		HeartbeatInterval:   5 * time.Millisecond,
	}
	return New(cfg, replog.New(), specpool.New(), transport, onLeader)
}

func TestHandleVoteRequestGrantsOnUpToDateLog(t *testing.T) {
	n := newTestNode("a", []PeerID{"b", "c"}, newFakeTransport(), nil)
	resp := n.HandleVoteRequest(VoteRequest{Term: 1, CandidateID: "b", LastLogIndex: 0, LastLogTerm: 0})
	require.True(t, resp.VoteGranted)
	require.Equal(t, uint64(1), resp.Term)
}

func TestHandleVoteRequestRejectsStaleTerm(t *testing.T) {
	n := newTestNode("a", []PeerID{"b"}, newFakeTransport(), nil)
	n.HandleVoteRequest(VoteRequest{Term: 5, CandidateID: "b"})
	resp := n.HandleVoteRequest(VoteRequest{Term: 3, CandidateID: "c"})
	require.False(t, resp.VoteGranted)
	require.Equal(t, uint64(5), resp.Term)
}

func TestHandleVoteRequestSingleVotePerTerm(t *testing.T) {
	n := newTestNode("a", []PeerID{"b", "c"}, newFakeTransport(), nil)
	first := n.HandleVoteRequest(VoteRequest{Term: 1, CandidateID: "b"})
	second := n.HandleVoteRequest(VoteRequest{Term: 1, CandidateID: "c"})
	require.True(t, first.VoteGranted)
	require.False(t, second.VoteGranted)
}

func TestHandleVoteRequestRejectsStaleLog(t *testing.T) {
	n := newTestNode("a", []PeerID{"b"}, newFakeTransport(), nil)
	n.log.Append(1, kvcommand.NewPut("k", []byte("v")))
	resp := n.HandleVoteRequest(VoteRequest{Term: 2, CandidateID: "b", LastLogIndex: 0, LastLogTerm: 0})
	require.False(t, resp.VoteGranted)
}

func TestHandleAppendEntriesRejectsLogMismatch(t *testing.T) {
	n := newTestNode("a", []PeerID{"b"}, newFakeTransport(), nil)
	resp := n.HandleAppendEntries(AppendEntriesRequest{
		Term: 1, LeaderID: "b", PrevLogIndex: 5, PrevLogTerm: 1,
	})
	require.False(t, resp.Success)
	require.Equal(t, uint64(1), resp.HintIndex)
}

func TestHandleAppendEntriesAppendsAndCommits(t *testing.T) {
	n := newTestNode("a", []PeerID{"b"}, newFakeTransport(), nil)
	cmd := kvcommand.NewPut("k", []byte("v"))
	resp := n.HandleAppendEntries(AppendEntriesRequest{
		Term:         1,
		LeaderID:     "b",
		PrevLogIndex: 0,
		PrevLogTerm:  0,
		Entries:      []replog.Entry{{Term: 1, Index: 1, Command: cmd}},
		LeaderCommit: 1,
	})
	require.True(t, resp.Success)
	require.Equal(t, uint64(1), n.Log().CommitIndex())
	require.True(t, n.role == Follower)
}

func TestHandleAppendEntriesTruncatesConflictingSuffix(t *testing.T) {
	n := newTestNode("a", []PeerID{"b"}, newFakeTransport(), nil)
	stale := kvcommand.NewPut("k", []byte("stale"))
	n.log.Append(1, stale)

	fresh := kvcommand.NewPut("k", []byte("fresh"))
	resp := n.HandleAppendEntries(AppendEntriesRequest{
		Term:         2,
		LeaderID:     "b",
		PrevLogIndex: 0,
		PrevLogTerm:  0,
		Entries:      []replog.Entry{{Term: 2, Index: 1, Command: fresh}},
	})
	require.True(t, resp.Success)
	got, ok := n.Log().Get(1)
	require.True(t, ok)
	require.Equal(t, fresh, got.Command)
}

func TestStepDownResetsLeaderBookkeeping(t *testing.T) {
	n := newTestNode("a", []PeerID{"b", "c"}, newFakeTransport(), nil)
	n.mu.Lock()
	n.role = Leader
	n.nextIndex = map[PeerID]uint64{"b": 3}
	n.stepDownLocked(9)
	role := n.role
	term := n.currentTerm
	nextIndex := n.nextIndex
	n.mu.Unlock()

	require.Equal(t, Follower, role)
	require.Equal(t, uint64(9), term)
	require.Nil(t, nextIndex)
}

func TestStartElectionWinsThreeNodeMajority(t *testing.T) {
	transport := newFakeTransport()
	var recovered []specpool.Entry
	a := newTestNode("a", []PeerID{"b", "c"}, transport, func(term uint64, r []specpool.Entry) {
		recovered = r
	})
	b := newTestNode("b", []PeerID{"a", "c"}, transport, nil)
	c := newTestNode("c", []PeerID{"a", "b"}, transport, nil)
	transport.nodes["a"] = a
	transport.nodes["b"] = b
	transport.nodes["c"] = c

	a.startElection()

	require.Eventually(t, func() bool { return a.IsLeader() }, time.Second, time.Millisecond)
	require.Nil(t, recovered)
}

func TestRecoverSpecPoolSelectsThresholdEntries(t *testing.T) {
	cmd := kvcommand.NewPut("k", []byte("v"))
	entry := specpool.Entry{CmdID: cmd.ID(), Command: cmd, SpecTerm: 1}
	pools := [][]specpool.Entry{{entry}, {entry}, {}}

	out := recoverSpecPool(pools, 0.5)
	require.Len(t, out, 1)
	require.Equal(t, cmd.ID(), out[0].CmdID)
}

func TestRecoverSpecPoolDropsBelowThreshold(t *testing.T) {
	cmd := kvcommand.NewPut("k", []byte("v"))
	entry := specpool.Entry{CmdID: cmd.ID(), Command: cmd, SpecTerm: 1}
	pools := [][]specpool.Entry{{entry}, {}, {}}

	out := recoverSpecPool(pools, 0.5)
	require.Empty(t, out)
}

func TestMajorityAndSuperQuorum(t *testing.T) {
	require.Equal(t, 2, Majority(3))
	require.Equal(t, 3, Majority(5))
	require.Equal(t, 4, SuperQuorum(5))
	require.Equal(t, 2, SuperQuorum(3))
}
