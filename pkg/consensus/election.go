package consensus

import (
	"context"
	"sort"
	"time"

	"github.com/Kylemclean11/Xline/pkg/specpool"
)

// Run starts the node's ticker loop: election timeouts on followers
// and candidates, heartbeats on the leader. It returns immediately; the
// loop runs until Stop is called.
func (n *Node) Run() {
	go n.tick()
}

func (n *Node) tick() {
	defer close(n.doneCh)

	ticker := time.NewTicker(n.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.mu.Lock()
			role := n.role
			electionExpired := time.Now().After(n.electionDeadline)
			n.mu.Unlock()

			switch role {
			case Leader:
				go n.broadcastAppendEntries(false)
			default:
				if electionExpired {
					go n.startElection()
				}
			}
		}
	}
}

// startElection runs one candidacy attempt: bump term, vote for self,
// broadcast VoteRequest, and become leader on a super-quorum. The
// fallback to simple majority below applies only if the super-quorum
// exceeds the cluster size, which SuperQuorum never returns for n >= 1
// (n=3 needs 2 votes, n=4 needs 4, n=5 needs 4).
func (n *Node) startElection() {
	n.mu.Lock()
	if n.onElection != nil {
		n.onElection()
	}
	n.stepDownLocked(n.currentTerm) // clears votedFor/leader state for a clean slate
	n.role = Candidate
	n.currentTerm++
	term := n.currentTerm
	n.votedFor = n.cfg.Self
	n.votedForSet = true
	n.leaderIDSet = false
	n.resetElectionDeadlineLocked()
	lastIndex := n.log.LastIndex()
	lastTerm := n.log.LastTerm()
	selfPool := n.pool.Snapshot()
	ctx, cancel := context.WithCancel(context.Background())
	n.cancelTerm = cancel
	n.mu.Unlock()
	n.persistStable()
	n.emitRoleChange()

	req := VoteRequest{
		Term:         term,
		CandidateID:  n.cfg.Self,
		LastLogIndex: lastIndex,
		LastLogTerm:  lastTerm,
		SpecPool:     selfPool,
	}

	clusterSize := n.cfg.clusterSize()
	need := SuperQuorum(clusterSize)
	if need > clusterSize {
		need = Majority(clusterSize)
	}

	type result struct {
		resp VoteResponse
		err  error
	}
	results := make(chan result, len(n.cfg.Peers))
	for _, peer := range n.cfg.Peers {
		peer := peer
		go func() {
			rctx, rcancel := context.WithTimeout(ctx, n.cfg.ElectionTimeoutBase)
			defer rcancel()
			resp, err := n.transport.SendVote(rctx, peer, req)
			results <- result{resp, err}
		}()
	}

	granted := 1 // voted for self
	pools := [][]specpool.Entry{selfPool}
	for i := 0; i < len(n.cfg.Peers); i++ {
		select {
		case r := <-results:
			if r.err != nil {
				continue
			}
			n.mu.Lock()
			if r.resp.Term > n.currentTerm {
				n.stepDownLocked(r.resp.Term)
				n.mu.Unlock()
				n.persistStable()
				n.emitRoleChange()
				return
			}
			stillCandidate := n.role == Candidate && n.currentTerm == term
			n.mu.Unlock()
			if !stillCandidate {
				return
			}
			if r.resp.VoteGranted {
				granted++
				pools = append(pools, r.resp.SpecPool)
			}
		case <-ctx.Done():
			return
		}
		if granted >= need {
			break
		}
	}

	if granted < need {
		return // election failed; will retry after the next randomized timeout
	}

	n.mu.Lock()
	if n.role != Candidate || n.currentTerm != term {
		n.mu.Unlock()
		return
	}
	n.role = Leader
	n.leaderID = n.cfg.Self
	n.leaderIDSet = true
	n.nextIndex = make(map[PeerID]uint64, len(n.cfg.Peers))
	n.matchIndex = make(map[PeerID]uint64, len(n.cfg.Peers))
	next := n.log.LastIndex() + 1
	for _, p := range n.cfg.Peers {
		n.nextIndex[p] = next
		n.matchIndex[p] = 0
	}
	n.mu.Unlock()
	n.emitRoleChange()

	recovered := recoverSpecPool(pools, n.cfg.SpecPoolRecoveryThreshold)
	if n.onLeader != nil && len(recovered) > 0 {
		n.onLeader(term, recovered)
	}

	go n.broadcastAppendEntries(true)
}

// recoverSpecPool scans the spec-pool snapshots collected from a
// super-quorum of voters and returns, in deterministic command-id
// order, every command observed in at least `threshold` of the
// snapshots — commands a prior leader may have fast-path-committed but
// never replicated to the log before crashing (S3).
func recoverSpecPool(pools [][]specpool.Entry, threshold float64) []specpool.Entry {
	counts := make(map[[16]byte]int)
	byID := make(map[[16]byte]specpool.Entry)
	for _, pool := range pools {
		for _, e := range pool {
			counts[e.CmdID]++
			if existing, ok := byID[e.CmdID]; !ok || e.SpecTerm > existing.SpecTerm {
				byID[e.CmdID] = e
			}
		}
	}

	need := threshold * float64(len(pools))
	var out []specpool.Entry
	for id, c := range counts {
		if float64(c) >= need {
			out = append(out, byID[id])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		for k := range out[i].CmdID {
			if out[i].CmdID[k] != out[j].CmdID[k] {
				return out[i].CmdID[k] < out[j].CmdID[k]
			}
		}
		return false
	})
	return out
}

// Replicate asks the leader to push its current log tail to every peer
// immediately, rather than waiting for the next heartbeat tick. It is a
// no-op on a non-leader. Used by the execution pipeline to kick
// replication right after appending a freshly proposed command.
func (n *Node) Replicate() {
	go n.broadcastAppendEntries(false)
}

// broadcastAppendEntries sends AppendEntries (heartbeat or carrying new
// entries) to every peer and folds the responses back into nextIndex/
// matchIndex and the commit index.
func (n *Node) broadcastAppendEntries(initial bool) {
	n.mu.RLock()
	if n.role != Leader {
		n.mu.RUnlock()
		return
	}
	term := n.currentTerm
	leaderCommit := n.log.CommitIndex()
	peers := append([]PeerID(nil), n.cfg.Peers...)
	n.mu.RUnlock()

	for _, peer := range peers {
		go n.replicateToPeer(peer, term, leaderCommit)
	}
}

func (n *Node) replicateToPeer(peer PeerID, term, leaderCommit uint64) {
	n.mu.RLock()
	if n.role != Leader || n.currentTerm != term {
		n.mu.RUnlock()
		return
	}
	next := n.nextIndex[peer]
	n.mu.RUnlock()
	if next == 0 {
		next = 1
	}

	prevIndex := next - 1
	prevTerm, _ := n.log.TermAt(prevIndex)
	entries := n.log.EntriesIn(next, n.log.LastIndex())

	req := AppendEntriesRequest{
		Term:         term,
		LeaderID:     n.cfg.Self,
		PrevLogIndex: prevIndex,
		PrevLogTerm:  prevTerm,
		Entries:      entries,
		LeaderCommit: leaderCommit,
		SpecPool:     n.pool.Snapshot(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.HeartbeatInterval*4)
	defer cancel()
	resp, err := n.transport.SendAppendEntries(ctx, peer, req)
	if err != nil {
		return
	}

	n.mu.Lock()
	if resp.Term > n.currentTerm {
		n.stepDownLocked(resp.Term)
		n.mu.Unlock()
		n.persistStable()
		n.emitRoleChange()
		return
	}
	if n.role != Leader || n.currentTerm != term {
		n.mu.Unlock()
		return
	}

	if resp.Success {
		if len(entries) > 0 {
			matched := entries[len(entries)-1].Index
			if matched > n.matchIndex[peer] {
				n.matchIndex[peer] = matched
			}
			n.nextIndex[peer] = matched + 1
		}
		n.maybeAdvanceCommitLocked(term)
		n.mu.Unlock()
		return
	}

	if resp.HintIndex > 0 {
		n.nextIndex[peer] = resp.HintIndex
	} else if n.nextIndex[peer] > 1 {
		n.nextIndex[peer]--
	}
	n.mu.Unlock()
}

// maybeAdvanceCommitLocked commits the highest index backed by a
// majority of matchIndex values, but only if that entry was appended in
// the current term (Raft's indirect-commit rule: older-term entries
// commit only transitively via a current-term entry). Caller must hold
// n.mu.
func (n *Node) maybeAdvanceCommitLocked(term uint64) {
	clusterSize := n.cfg.clusterSize()
	need := Majority(clusterSize)

	matches := make([]uint64, 0, clusterSize)
	matches = append(matches, n.log.LastIndex()) // leader always matches its own log
	for _, m := range n.matchIndex {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i] > matches[j] })
	candidate := matches[need-1]

	if candidate == 0 {
		return
	}
	entryTerm, ok := n.log.TermAt(candidate)
	if !ok || entryTerm != term {
		return
	}
	n.log.AdvanceCommit(candidate)
}
