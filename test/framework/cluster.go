package framework

import (
	"fmt"
	"os"
	"time"

	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/Kylemclean11/Xline/pkg/command/kvcommand"
	"github.com/Kylemclean11/Xline/pkg/consensus"
	"github.com/Kylemclean11/Xline/pkg/engine"
	"github.com/Kylemclean11/Xline/pkg/storage"
)

// Node is one in-process cluster member.
type Node struct {
	ID     consensus.PeerID
	Engine *engine.Engine
	dir    string
	store  storage.Store
}

// Config configures a Cluster.
type Config struct {
	Size                      int
	ElectionTimeoutBaseMS     int
	HeartbeatIntervalMS       int
	SpecPoolRecoveryThreshold float64
}

// DefaultConfig returns a 5-node configuration with shortened timeouts
// suitable for fast-running tests.
func DefaultConfig() Config {
	return Config{
		Size:                  5,
		ElectionTimeoutBaseMS: 60,
		HeartbeatIntervalMS:   10,
	}
}

// Cluster owns a set of in-process nodes wired together over an
// in-memory transport.
type Cluster struct {
	cfg   Config
	reg   *registry
	codec command.Codec
	Nodes map[consensus.PeerID]*Node
	order []consensus.PeerID
}

// NewCluster builds (but does not start) a cluster of cfg.Size nodes,
// each with its own temp-dir-backed BoltDB store, per §6's static
// membership rule.
func NewCluster(cfg Config) (*Cluster, error) {
	if cfg.Size < 1 {
		return nil, fmt.Errorf("framework: cluster size must be >= 1, got %d", cfg.Size)
	}

	c := &Cluster{
		cfg:   cfg,
		reg:   newRegistry(),
		codec: command.CodecFunc(kvcommand.Decode),
		Nodes: make(map[consensus.PeerID]*Node, cfg.Size),
	}

	ids := make([]consensus.PeerID, cfg.Size)
	for i := range ids {
		ids[i] = consensus.PeerID(fmt.Sprintf("node-%d", i+1))
	}
	c.order = ids

	for _, id := range ids {
		if err := c.buildNode(id, ids); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Cluster) peersOf(self consensus.PeerID, all []consensus.PeerID) []engine.Peer {
	var peers []engine.Peer
	for _, id := range all {
		if id == self {
			continue
		}
		peers = append(peers, engine.Peer{ID: id, Address: string(id)})
	}
	return peers
}

func (c *Cluster) buildNode(id consensus.PeerID, all []consensus.PeerID) error {
	dir, err := os.MkdirTemp("", "curp-framework-"+string(id)+"-")
	if err != nil {
		return fmt.Errorf("framework: create data dir for %s: %w", id, err)
	}

	store, err := storage.NewBoltStore(dir)
	if err != nil {
		return fmt.Errorf("framework: open store for %s: %w", id, err)
	}

	ecfg := engine.Config{
		Self:                      id,
		Peers:                     c.peersOf(id, all),
		ElectionTimeoutBaseMS:     c.cfg.ElectionTimeoutBaseMS,
		HeartbeatIntervalMS:       c.cfg.HeartbeatIntervalMS,
		SpecPoolRecoveryThreshold: c.cfg.SpecPoolRecoveryThreshold,
		DataDir:                   dir,
	}

	e, err := engine.New(ecfg, &inProcTransport{reg: c.reg}, c.codec, kvcommand.NewRegister(), store)
	if err != nil {
		return fmt.Errorf("framework: create engine for %s: %w", id, err)
	}

	c.reg.set(id, e)
	c.Nodes[id] = &Node{ID: id, Engine: e, dir: dir, store: store}
	return nil
}

// Start launches every node's background workers.
func (c *Cluster) Start() {
	for _, id := range c.order {
		c.Nodes[id].Engine.Start()
	}
}

// Stop halts every node's background workers and closes its store.
func (c *Cluster) Stop() {
	for _, id := range c.order {
		n := c.Nodes[id]
		n.Engine.Stop()
		_ = n.store.Close()
	}
}

// Cleanup stops the cluster and removes every node's temp data
// directory. Tests should defer this right after NewCluster.
func (c *Cluster) Cleanup() {
	c.Stop()
	for _, id := range c.order {
		_ = os.RemoveAll(c.Nodes[id].dir)
	}
}

// Leader returns the node that believes itself leader, if any. In a
// healthy cluster with one leader this is unambiguous; during an
// election it may return ok=false.
func (c *Cluster) Leader() (*Node, bool) {
	for _, id := range c.order {
		if c.Nodes[id].Engine.Node().IsLeader() {
			return c.Nodes[id], true
		}
	}
	return nil, false
}

// WaitForLeader polls until a single leader emerges or timeout elapses.
func (c *Cluster) WaitForLeader(timeout time.Duration) (*Node, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if n, ok := c.Leader(); ok {
			return n, nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil, fmt.Errorf("framework: no leader elected within %s", timeout)
}

// Partition marks id as unreachable: SendVote/SendAppendEntries to or
// from it fail, simulating a network split without stopping its
// engine.
func (c *Cluster) Partition(id consensus.PeerID) {
	c.reg.setPartitioned(id, true)
}

// Heal reverses Partition.
func (c *Cluster) Heal(id consensus.PeerID) {
	c.reg.setPartitioned(id, false)
}

// Kill stops a node's engine and closes its store, simulating a crash.
// The node stays in the registry as unreachable until Restart.
func (c *Cluster) Kill(id consensus.PeerID) error {
	n, ok := c.Nodes[id]
	if !ok {
		return fmt.Errorf("framework: no such node %q", id)
	}
	n.Engine.Stop()
	c.reg.setPartitioned(id, true)
	return n.store.Close()
}

// Restart rebuilds a killed node's engine from its on-disk store
// (stable state and any snapshot survive) and starts it, simulating a
// process restart — the scenario leader-crash-recovery tests need.
func (c *Cluster) Restart(id consensus.PeerID) error {
	n, ok := c.Nodes[id]
	if !ok {
		return fmt.Errorf("framework: no such node %q", id)
	}

	store, err := storage.NewBoltStore(n.dir)
	if err != nil {
		return fmt.Errorf("framework: reopen store for %s: %w", id, err)
	}

	ecfg := engine.Config{
		Self:                      id,
		Peers:                     c.peersOf(id, c.order),
		ElectionTimeoutBaseMS:     c.cfg.ElectionTimeoutBaseMS,
		HeartbeatIntervalMS:       c.cfg.HeartbeatIntervalMS,
		SpecPoolRecoveryThreshold: c.cfg.SpecPoolRecoveryThreshold,
		DataDir:                   n.dir,
	}

	e, err := engine.New(ecfg, &inProcTransport{reg: c.reg}, c.codec, kvcommand.NewRegister(), store)
	if err != nil {
		return fmt.Errorf("framework: recreate engine for %s: %w", id, err)
	}

	n.store = store
	n.Engine = e
	c.reg.set(id, e)
	c.reg.setPartitioned(id, false)
	e.Start()
	return nil
}
