package framework

import (
	"fmt"
	"testing"
	"time"

	"github.com/Kylemclean11/Xline/pkg/command/kvcommand"
	"github.com/Kylemclean11/Xline/pkg/consensus"
	"github.com/Kylemclean11/Xline/pkg/pipeline"
	"github.com/Kylemclean11/Xline/pkg/readstate"
	"github.com/Kylemclean11/Xline/pkg/snapshot"
	"github.com/Kylemclean11/Xline/pkg/specpool"
	"github.com/stretchr/testify/require"
)

// S1: fast path. A non-conflicting command commits in one round trip
// and every node's log ends with exactly that one entry.
func TestFastPath(t *testing.T) {
	c, err := NewCluster(DefaultConfig())
	require.NoError(t, err)
	defer c.Cleanup()
	c.Start()

	leader, err := c.WaitForLeader(2 * time.Second)
	require.NoError(t, err)

	asr, err := leader.PutAndWaitSynced("k1", []byte("v1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), []byte(asr))

	for _, id := range c.order {
		n := c.Nodes[id]
		require.Eventually(t, func() bool {
			return n.Engine.Log().LastIndex() == 1
		}, time.Second, 5*time.Millisecond, "node %s never replicated the entry", id)
	}
}

// S2: a conflicting command falls back to the slow path and still
// commits, just without a fast-path ER.
func TestConflictFallsBackToSlowPath(t *testing.T) {
	c, err := NewCluster(DefaultConfig())
	require.NoError(t, err)
	defer c.Cleanup()
	c.Start()

	leader, err := c.WaitForLeader(2 * time.Second)
	require.NoError(t, err)

	cmdA := kvcommand.NewPut("k1", []byte("a"))
	rawA, err := cmdA.Marshal()
	require.NoError(t, err)
	_, err = leader.Engine.Propose(testCtx(), rawA)
	require.NoError(t, err)

	cmdB := kvcommand.NewPut("k1", []byte("b"))
	rawB, err := cmdB.Marshal()
	require.NoError(t, err)
	_, err = leader.Engine.Propose(testCtx(), rawB)
	require.Error(t, err)
	conflict, ok := err.(*pipeline.KeyConflictError)
	require.True(t, ok, "expected a *pipeline.KeyConflictError, got %T", err)
	require.Contains(t, conflict.ConflictingIDs, cmdA.ID())

	asr, err := leader.Engine.WaitSynced(testCtx(), cmdB.ID())
	require.NoError(t, err)
	require.Equal(t, []byte("b"), []byte(asr))
}

// S4: a 2+2 split of a 4-node cluster elects no leader until healed.
func TestSplitVoteNoLeaderUntilHealed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Size = 4
	c, err := NewCluster(cfg)
	require.NoError(t, err)
	defer c.Cleanup()
	c.Start()

	_, err = c.WaitForLeader(200 * time.Millisecond)
	require.NoError(t, err, "expected an initial leader before partitioning")

	c.Partition(c.order[2])
	c.Partition(c.order[3])

	require.Never(t, func() bool {
		_, ok := c.Leader()
		return ok
	}, 300*time.Millisecond, 10*time.Millisecond, "no side of an even split should hold leadership alone")

	c.Heal(c.order[2])
	c.Heal(c.order[3])

	_, err = c.WaitForLeader(2 * time.Second)
	require.NoError(t, err, "a leader must re-emerge once the partition heals")
}

// S6: a pending conflicting write forces a linearizable read to wait
// on that command's ASR rather than just the current commit index.
func TestLinearizableReadWaitsOnConflictingSpecEntry(t *testing.T) {
	c, err := NewCluster(DefaultConfig())
	require.NoError(t, err)
	defer c.Cleanup()
	c.Start()

	leader, err := c.WaitForLeader(2 * time.Second)
	require.NoError(t, err)

	_, err = leader.PutAndWaitSynced("k1", []byte("a"))
	require.NoError(t, err)

	cmdB := kvcommand.NewPut("k1", []byte("b"))
	rawB, err := cmdB.Marshal()
	require.NoError(t, err)

	fastDone := make(chan struct{})
	go func() {
		_, _ = leader.Engine.Propose(testCtx(), rawB)
		close(fastDone)
	}()

	read := kvcommand.NewGet("k1")
	var resp readstate.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = leader.Engine.FetchReadState(mustMarshal(t, read))
		return err == nil && resp.Kind == readstate.KindIDs && len(resp.IDs) > 0
	}, time.Second, 2*time.Millisecond, "expected a conflicting pending write to surface as KindIDs")
	require.Contains(t, resp.IDs, cmdB.ID())

	<-fastDone
	_, err = leader.Engine.WaitSynced(testCtx(), cmdB.ID())
	require.NoError(t, err)
}

// S3: a fast-path command the leader acknowledges but crashes before
// replicating is not lost. Per spec.md's own wording for this scenario,
// A is present in 3 of the 4 surviving spec-pools; the newly elected
// leader's recovery step (recoverSpecPool, consensus/election.go) must
// see it in enough of those pools to re-append it to its log.
func TestLeaderCrashRecoveryPreservesFastPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Size = 5
	c, err := NewCluster(cfg)
	require.NoError(t, err)
	defer c.Cleanup()
	c.Start()

	leader, err := c.WaitForLeader(2 * time.Second)
	require.NoError(t, err)

	cmdA := kvcommand.NewPut("k1", []byte("a"))
	term := leader.Engine.Node().Term()

	// The leader fast-path-accepts A into its own pool, as Propose
	// would, then goes down before a single AppendEntries round
	// propagates it anywhere.
	_, _ = leader.Engine.Node().Pool().TryInsert(cmdA, term)

	var survivors []consensus.PeerID
	for _, id := range c.order {
		if id != leader.ID {
			survivors = append(survivors, id)
		}
	}
	require.Len(t, survivors, 4)
	for _, id := range survivors[:3] {
		c.Nodes[id].Engine.Node().Pool().ReplaceFrom([]specpool.Entry{
			{CmdID: cmdA.ID(), Command: cmdA, SpecTerm: term},
		})
	}

	require.NoError(t, c.Kill(leader.ID))

	newLeader, err := c.WaitForLeader(2 * time.Second)
	require.NoError(t, err)
	require.NotEqual(t, leader.ID, newLeader.ID)

	require.Eventually(t, func() bool {
		e, ok := newLeader.Engine.Log().Get(1)
		return ok && e.Command.ID() == cmdA.ID()
	}, time.Second, 5*time.Millisecond, "recovered command A never reached the new leader's log")
}

// S5: a follower that crashed, missed several commits, and comes back
// with an empty in-memory log is brought current by InstallSnapshot
// rather than by replaying entries the leader has already compacted
// away.
func TestSnapshotCatchUp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Size = 3
	c, err := NewCluster(cfg)
	require.NoError(t, err)
	defer c.Cleanup()
	c.Start()

	leader, err := c.WaitForLeader(2 * time.Second)
	require.NoError(t, err)

	var follower *Node
	for _, id := range c.order {
		if id != leader.ID {
			follower = c.Nodes[id]
			break
		}
	}
	require.NotNil(t, follower)
	require.NoError(t, c.Kill(follower.ID))

	for i := 0; i < 5; i++ {
		_, err := leader.PutAndWaitSynced(fmt.Sprintf("k%d", i), []byte("v"))
		require.NoError(t, err)
	}

	lastApplied := leader.Engine.Log().LastApplied()
	require.NoError(t, leader.Engine.TakeSnapshot(lastApplied))

	rec, ok, err := leader.store.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.Restart(follower.ID))

	chunks := snapshot.Chunks(leader.Engine.Node().Term(), string(leader.ID), rec.LastIncludedIndex, rec.LastIncludedTerm, rec.Data, 0)
	for _, ch := range chunks {
		require.NoError(t, c.Nodes[follower.ID].Engine.InstallSnapshot(ch))
	}

	require.Eventually(t, func() bool {
		base, _ := c.Nodes[follower.ID].Engine.Log().Base()
		return base == rec.LastIncludedIndex
	}, time.Second, 5*time.Millisecond, "follower's log was never compacted to the installed snapshot's base")
	require.Equal(t, rec.LastIncludedIndex, c.Nodes[follower.ID].Engine.Log().LastApplied())
}
