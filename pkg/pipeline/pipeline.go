// Package pipeline implements the execution pipeline (C6): it drives a
// proposed command through the exe-worker, replication and apply
// stages, and is the only component that calls into the application's
// Command.Execute/AfterSync.
//
// Grounded in the worker-pool-plus-stopCh shape of
// cuemby-warren/pkg/worker and the applier goroutine in
// yusong-yan-MultiRaft/src/kvraft/server.go, generalized to the
// spec-pool-aware fast/slow path split this protocol adds.
package pipeline

import (
	"context"

	"github.com/Kylemclean11/Xline/pkg/board"
	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/Kylemclean11/Xline/pkg/consensus"
	"github.com/Kylemclean11/Xline/pkg/log"
	"github.com/Kylemclean11/Xline/pkg/metrics"
	"github.com/Kylemclean11/Xline/pkg/replog"
	"github.com/Kylemclean11/Xline/pkg/specpool"
)

// Config configures a Pipeline.
type Config struct {
	// ExeWorkers is the number of concurrent exe-worker goroutines.
	ExeWorkers int
	// ExeQueueDepth bounds the exe-worker inbound queue; a full queue
	// yields ErrBusy from Propose.
	ExeQueueDepth int
	// OnApply, if set, is called after each entry's AfterSync has been
	// published to the board and last_applied advanced past it.
	// Optional; used by pkg/engine to publish a commit event.
	OnApply func(index uint64)
}

func (c *Config) setDefaults() {
	if c.ExeWorkers <= 0 {
		c.ExeWorkers = 4
	}
	if c.ExeQueueDepth <= 0 {
		c.ExeQueueDepth = 256
	}
}

type execTask struct {
	cmd command.Command
}

// Pipeline wires the log, spec-pool, board and consensus node into the
// Propose/WaitSynced/FetchReadState operations.
type Pipeline struct {
	cfg   Config
	log   *replog.Log
	pool  *specpool.Pool
	board *board.Board
	node  *consensus.Node
	state command.State

	exeCh chan execTask

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Pipeline bound to the given components and application
// state machine. Start must be called to run its background workers.
func New(cfg Config, l *replog.Log, pool *specpool.Pool, b *board.Board, node *consensus.Node, state command.State) *Pipeline {
	cfg.setDefaults()
	return &Pipeline{
		cfg:    cfg,
		log:    l,
		pool:   pool,
		board:  b,
		node:   node,
		state:  state,
		exeCh:  make(chan execTask, cfg.ExeQueueDepth),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the exe-worker pool and the apply worker.
func (p *Pipeline) Start() {
	for i := 0; i < p.cfg.ExeWorkers; i++ {
		go p.exeWorker()
	}
	go p.applyWorker()
}

// Stop halts the pipeline's background workers and waits for the apply
// worker to drain its current iteration.
func (p *Pipeline) Stop() {
	close(p.stopCh)
	<-p.doneCh
}

// Propose implements §4.6's leader-side Propose handling.
func (p *Pipeline) Propose(ctx context.Context, raw []byte, codec command.Codec) (command.ExecResult, error) {
	select {
	case <-p.stopCh:
		return nil, ErrShuttingDown
	default:
	}

	cmd, err := codec.Decode(raw)
	if err != nil {
		return nil, ErrEncoding
	}

	if !p.node.IsLeader() {
		return nil, ErrNotLeader
	}

	if p.board.Exists(cmd.ID()) {
		return p.board.WaitER(ctx, cmd.ID())
	}

	timer := metrics.NewTimer()
	term := p.node.Term()
	outcome, conflicting := p.pool.TryInsert(cmd, term)

	p.log.Append(term, cmd)
	p.node.Replicate()

	if outcome == specpool.Conflict {
		metrics.ProposeOutcomesTotal.WithLabelValues("slow_path").Inc()
		timer.ObserveDurationVec(metrics.ProposeDuration, "slow_path")
		ids := make([][16]byte, len(conflicting))
		for i, id := range conflicting {
			ids[i] = id
		}
		return nil, &KeyConflictError{ConflictingIDs: ids}
	}
	metrics.ProposeOutcomesTotal.WithLabelValues("fast_path").Inc()

	select {
	case p.exeCh <- execTask{cmd: cmd}:
	default:
		return nil, ErrBusy
	}

	result, err := p.board.WaitER(ctx, cmd.ID())
	timer.ObserveDurationVec(metrics.ProposeDuration, "fast_path")
	return result, err
}

// WaitSynced implements the WaitSynced RPC: block for a command's
// after-sync result.
func (p *Pipeline) WaitSynced(ctx context.Context, id command.ID) (command.AfterSyncResult, error) {
	return p.board.WaitASR(ctx, id)
}

// exeWorker drains the exe-worker queue, executing commands against the
// application state and publishing results to the board. Two
// conflicting commands are never enqueued here concurrently, since a
// conflicting Propose is routed to the slow path at spec-pool
// insertion (§4.6 ordering guarantee (ii)).
func (p *Pipeline) exeWorker() {
	for {
		select {
		case <-p.stopCh:
			return
		case task := <-p.exeCh:
			er, err := task.cmd.Execute(p.state)
			if err != nil {
				log.Logger.Error().Err(err).Str("cmd_id", task.cmd.ID().String()).Msg("execute failed")
				continue
			}
			if err := p.board.SetER(task.cmd.ID(), er); err != nil {
				log.Logger.Error().Err(err).Str("cmd_id", task.cmd.ID().String()).Msg("non-idempotent ER publish")
			}
		}
	}
}

// applyWorker drains committed log entries in strictly increasing index
// order, invoking AfterSync exactly once per index and publishing the
// ASR to the board (§4.6 step 4, §5 apply-order guarantee). It wakes on
// the log's coalesced commit-notify channel rather than polling.
func (p *Pipeline) applyWorker() {
	defer close(p.doneCh)

	notify := p.log.CommitNotify()
	for {
		p.drainCommitted()
		select {
		case <-p.stopCh:
			return
		case <-notify:
		}
	}
}

func (p *Pipeline) drainCommitted() {
	for {
		applied := p.log.LastApplied()
		commit := p.log.CommitIndex()
		if applied >= commit {
			return
		}
		next := applied + 1
		entry, ok := p.log.Get(next)
		if !ok {
			// The entry was compacted into a snapshot before we reached
			// it; the snapshot engine (C7) is responsible for raising
			// last_applied alongside base_index in that case.
			return
		}

		timer := metrics.NewTimer()
		asr, err := entry.Command.AfterSync(p.state, next)
		timer.ObserveDuration(metrics.AfterSyncDuration)
		if err != nil {
			log.Logger.Error().Err(err).Uint64("index", next).Msg("after_sync failed")
		}
		if err := p.board.SetASR(entry.Command.ID(), asr); err != nil {
			log.Logger.Error().Err(err).Str("cmd_id", entry.Command.ID().String()).Msg("non-idempotent ASR publish")
		}
		p.pool.Remove(entry.Command.ID())
		if err := p.log.SetLastApplied(next); err != nil {
			log.Logger.Error().Err(err).Msg("last_applied regression")
			return
		}
		if p.cfg.OnApply != nil {
			p.cfg.OnApply(next)
		}
	}
}
