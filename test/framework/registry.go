// Package framework is an in-process, no-real-network multi-engine test
// harness: it wires several engine.Engine instances together over a
// direct in-memory consensus.Transport instead of gRPC, so scenario
// tests can drive elections, replication, partitions and restarts
// without binding sockets.
//
// Grounded in the shape of cuemby-warren's test/framework/cluster.go
// (a Cluster owning named members, Start/Stop, GetLeader,
// WaitForQuorum, KillManager/RestartManager) but with every member an
// in-process engine.Engine rather than a spawned warren binary or VM —
// this harness has no process, network or runtime dependency to spawn.
package framework

import (
	"context"
	"fmt"
	"sync"

	"github.com/Kylemclean11/Xline/pkg/consensus"
	"github.com/Kylemclean11/Xline/pkg/engine"
)

// registry is the shared address book every inProcTransport looks
// peers up in, and the knob scenario tests use to simulate a network
// partition by marking a peer unreachable.
type registry struct {
	mu          sync.RWMutex
	engines     map[consensus.PeerID]*engine.Engine
	partitioned map[consensus.PeerID]bool
}

func newRegistry() *registry {
	return &registry{
		engines:     make(map[consensus.PeerID]*engine.Engine),
		partitioned: make(map[consensus.PeerID]bool),
	}
}

func (r *registry) set(id consensus.PeerID, e *engine.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[id] = e
}

func (r *registry) get(id consensus.PeerID) (*engine.Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.partitioned[id] {
		return nil, false
	}
	e, ok := r.engines[id]
	return e, ok
}

func (r *registry) setPartitioned(id consensus.PeerID, down bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partitioned[id] = down
}

// inProcTransport implements consensus.Transport by calling directly
// into a peer engine's AppendEntries/Vote methods, skipping wire
// encoding entirely.
type inProcTransport struct {
	reg *registry
}

func (t *inProcTransport) SendVote(_ context.Context, peer consensus.PeerID, req consensus.VoteRequest) (consensus.VoteResponse, error) {
	e, ok := t.reg.get(peer)
	if !ok {
		return consensus.VoteResponse{}, fmt.Errorf("framework: peer %q unreachable", peer)
	}
	return e.Vote(req), nil
}

func (t *inProcTransport) SendAppendEntries(_ context.Context, peer consensus.PeerID, req consensus.AppendEntriesRequest) (consensus.AppendEntriesResponse, error) {
	e, ok := t.reg.get(peer)
	if !ok {
		return consensus.AppendEntriesResponse{}, fmt.Errorf("framework: peer %q unreachable", peer)
	}
	return e.AppendEntries(req), nil
}
