// Package engine wires the consensus, replog, specpool, board, pipeline,
// readstate and snapshot packages into the single public surface a
// transport binds to: Propose, WaitSynced, AppendEntries, Vote,
// FetchLeader, InstallSnapshot and FetchReadState.
package engine

import (
	"runtime"
	"time"

	"github.com/Kylemclean11/Xline/pkg/consensus"
)

// Peer is one cluster member, per §6's static "(node_id, address)" list.
type Peer struct {
	ID      consensus.PeerID
	Address string
}

// Config enumerates every tunable named in §6.
type Config struct {
	Self  consensus.PeerID
	Peers []Peer

	ElectionTimeoutBaseMS int // default 1000, randomized x[1,2)
	HeartbeatIntervalMS   int // default 150

	ExeWorkerCount   int // default = CPU count
	ApplyWorkerCount int // default = CPU count; not read by any component: the apply stage is always a single sequential consumer (§5)

	ProposeQueueCap           int     // exe-worker inbound queue capacity
	ReplicationQueueCap       int     // not read by any component: replication runs one goroutine per peer per round, with no outbound queue
	SpecPoolRecoveryThreshold float64 // fraction in (1/2, 1]

	SnapshotChunkBytes int

	DataDir string
}

func (c *Config) setDefaults() {
	if c.ElectionTimeoutBaseMS <= 0 {
		c.ElectionTimeoutBaseMS = 1000
	}
	if c.HeartbeatIntervalMS <= 0 {
		c.HeartbeatIntervalMS = 150
	}
	if c.ExeWorkerCount <= 0 {
		c.ExeWorkerCount = runtime.NumCPU()
	}
	if c.ApplyWorkerCount <= 0 {
		c.ApplyWorkerCount = runtime.NumCPU()
	}
	if c.ProposeQueueCap <= 0 {
		c.ProposeQueueCap = 256
	}
	if c.ReplicationQueueCap <= 0 {
		c.ReplicationQueueCap = 256
	}
	if c.SpecPoolRecoveryThreshold <= 0.5 || c.SpecPoolRecoveryThreshold > 1 {
		c.SpecPoolRecoveryThreshold = 0.5 + 1.0/8
	}
	if c.SnapshotChunkBytes <= 0 {
		c.SnapshotChunkBytes = 1 << 20
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
}

func (c *Config) electionTimeoutBase() time.Duration {
	return time.Duration(c.ElectionTimeoutBaseMS) * time.Millisecond
}

func (c *Config) heartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

func (c *Config) peerIDs() []consensus.PeerID {
	ids := make([]consensus.PeerID, len(c.Peers))
	for i, p := range c.Peers {
		ids[i] = p.ID
	}
	return ids
}
