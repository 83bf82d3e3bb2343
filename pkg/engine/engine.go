package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Kylemclean11/Xline/pkg/board"
	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/Kylemclean11/Xline/pkg/consensus"
	"github.com/Kylemclean11/Xline/pkg/events"
	"github.com/Kylemclean11/Xline/pkg/log"
	"github.com/Kylemclean11/Xline/pkg/metrics"
	"github.com/Kylemclean11/Xline/pkg/pipeline"
	"github.com/Kylemclean11/Xline/pkg/readstate"
	"github.com/Kylemclean11/Xline/pkg/replog"
	"github.com/Kylemclean11/Xline/pkg/snapshot"
	"github.com/Kylemclean11/Xline/pkg/specpool"
	"github.com/Kylemclean11/Xline/pkg/storage"
)

// LeaderInfo is returned by FetchLeader.
type LeaderInfo struct {
	LeaderID consensus.PeerID
	Known    bool
	Term     uint64
	// ElectionDeadline is this node's own next election timeout, a
	// diagnostic field carried over the wire as a protobuf Timestamp
	// (pkg/transport) rather than a node's durable state.
	ElectionDeadline time.Time
}

// Engine is the single process-facing entry point: the assembled
// consensus node, replicated log, spec-pool, board, execution pipeline,
// read-state tracker and snapshot engine for one cluster member.
type Engine struct {
	cfg Config

	log   *replog.Log
	pool  *specpool.Pool
	board *board.Board
	node  *consensus.Node

	pipeline  *pipeline.Pipeline
	readTrack *readstate.Tracker
	assembler *snapshot.Assembler
	taker     *snapshot.Taker
	events    *events.Broker

	store storage.Store
	codec command.Codec
	state command.State
}

// Events returns the engine's lifecycle event broker: role changes,
// leader elections, commits, and snapshot activity. Consumers (the
// curpd daemon's own lifecycle logging, metrics exporters, tests)
// subscribe with events.Broker.Subscribe.
func (e *Engine) Events() *events.Broker { return e.events }

// New assembles an Engine. transport is the wire layer (pkg/transport
// binds a concrete gRPC client to consensus.Transport); state is the
// application state machine, optionally implementing
// snapshot.StateMachine for snapshot support.
func New(cfg Config, transport consensus.Transport, codec command.Codec, state command.State, store storage.Store) (*Engine, error) {
	cfg.setDefaults()

	stable, err := store.LoadStableState()
	if err != nil {
		return nil, fmt.Errorf("engine: load stable state: %w", err)
	}

	l := replog.New()
	pool := specpool.New()
	b := board.New()

	if rec, ok, err := store.LoadSnapshot(); err != nil {
		return nil, fmt.Errorf("engine: load snapshot: %w", err)
	} else if ok {
		if sm, ok := state.(snapshot.StateMachine); ok {
			if err := sm.Restore(rec.Data); err != nil {
				return nil, fmt.Errorf("engine: restore snapshot: %w", err)
			}
		}
		l.Compact(rec.LastIncludedIndex, rec.LastIncludedTerm)
		_ = l.SetLastApplied(rec.LastIncludedIndex)
	}

	consensusCfg := consensus.Config{
		Self:                      cfg.Self,
		Peers:                     cfg.peerIDs(),
		ElectionTimeoutBase:       cfg.electionTimeoutBase(),
		HeartbeatInterval:         cfg.heartbeatInterval(),
		SpecPoolRecoveryThreshold: cfg.SpecPoolRecoveryThreshold,
	}

	e := &Engine{
		cfg:    cfg,
		log:    l,
		pool:   pool,
		board:  b,
		store:  store,
		codec:  codec,
		state:  state,
		events: events.NewBroker(),
	}

	e.node = consensus.New(consensusCfg, l, pool, transport, e.onLeaderElected)
	e.node.SetStableStateSink(e.persistStableState)
	e.node.SetElectionHook(metrics.ElectionsTotal.Inc)
	e.node.SetRoleChangeHook(e.onRoleChange)
	if stable.CurrentTerm > 0 || stable.VotedForSet {
		e.node.RestoreStableState(stable.CurrentTerm, consensus.PeerID(stable.VotedFor), stable.VotedForSet)
	}

	e.pipeline = pipeline.New(pipeline.Config{
		ExeWorkers:    cfg.ExeWorkerCount,
		ExeQueueDepth: cfg.ProposeQueueCap,
		OnApply:       e.onApply,
	}, l, pool, b, e.node, state)

	e.readTrack = readstate.New(l, pool)

	if sm, ok := state.(snapshot.StateMachine); ok {
		e.assembler = snapshot.New(l, sm, store)
		e.taker = snapshot.NewTaker(l, sm, store)
	}

	return e, nil
}

// Start launches the engine's background workers: the event broker, the
// consensus node's election/heartbeat ticker and the pipeline's
// exe/apply workers.
func (e *Engine) Start() {
	e.events.Start()
	e.node.Run()
	e.pipeline.Start()
}

// Stop gracefully halts the engine's background workers.
func (e *Engine) Stop() {
	e.pipeline.Stop()
	e.node.Stop()
	e.events.Stop()
}

func (e *Engine) onLeaderElected(term uint64, recovered []specpool.Entry) {
	for _, entry := range recovered {
		e.log.Append(term, entry.Command)
		log.WithTerm(term).Info().Str("cmd_id", entry.CmdID.String()).Msg("recovered fast-path command into log")
	}
	metrics.SpecPoolRecoveredTotal.Add(float64(len(recovered)))
	if len(recovered) > 0 {
		e.events.Publish(&events.Event{
			Type:    events.EventSpecPoolRecovered,
			Message: fmt.Sprintf("recovered %d fast-path command(s) in term %d", len(recovered), term),
		})
	}
	e.node.Replicate()
}

// onRoleChange publishes a role.changed event for every role/term
// transition, and additionally a leader.elected event when the
// transition lands on Leader (§4.5's election outcome).
func (e *Engine) onRoleChange(role consensus.Role, term uint64) {
	e.events.Publish(&events.Event{
		Type:    events.EventRoleChanged,
		Message: fmt.Sprintf("role=%s term=%d", role, term),
	})
	if role == consensus.Leader {
		e.events.Publish(&events.Event{
			Type:    events.EventLeaderElected,
			Message: fmt.Sprintf("elected leader for term %d", term),
		})
	}
}

// onApply publishes a log.committed event once an entry's after_sync
// has been applied and published to the board.
func (e *Engine) onApply(index uint64) {
	e.events.Publish(&events.Event{
		Type:    events.EventEntryCommitted,
		Message: fmt.Sprintf("applied index %d", index),
	})
}

func (e *Engine) persistStableState(currentTerm uint64, votedFor consensus.PeerID, votedForSet bool) {
	if err := e.store.SaveStableState(storage.StableState{
		CurrentTerm: currentTerm,
		VotedFor:    string(votedFor),
		VotedForSet: votedForSet,
	}); err != nil {
		log.Logger.Error().Err(err).Msg("failed to persist stable state")
	}
}

// Propose implements the Propose RPC.
func (e *Engine) Propose(ctx context.Context, raw []byte) (command.ExecResult, error) {
	return e.pipeline.Propose(ctx, raw, e.codec)
}

// WaitSynced implements the WaitSynced RPC.
func (e *Engine) WaitSynced(ctx context.Context, id command.ID) (command.AfterSyncResult, error) {
	return e.pipeline.WaitSynced(ctx, id)
}

// AppendEntries implements the AppendEntries RPC server side.
func (e *Engine) AppendEntries(req consensus.AppendEntriesRequest) consensus.AppendEntriesResponse {
	return e.node.HandleAppendEntries(req)
}

// Vote implements the Vote RPC server side.
func (e *Engine) Vote(req consensus.VoteRequest) consensus.VoteResponse {
	return e.node.HandleVoteRequest(req)
}

// FetchLeader implements the FetchLeader RPC.
func (e *Engine) FetchLeader() LeaderInfo {
	id, known := e.node.Leader()
	return LeaderInfo{
		LeaderID:         id,
		Known:            known,
		Term:             e.node.Term(),
		ElectionDeadline: e.node.ElectionDeadline(),
	}
}

// FetchReadState implements the FetchReadState RPC. A follower rejects
// this with ErrNotLeader per §4.8.
func (e *Engine) FetchReadState(raw []byte) (readstate.Response, error) {
	if !e.node.IsLeader() {
		return readstate.Response{}, pipeline.ErrNotLeader
	}
	cmd, err := e.codec.Decode(raw)
	if err != nil {
		return readstate.Response{}, pipeline.ErrEncoding
	}
	return e.readTrack.FetchReadState(cmd), nil
}

// InstallSnapshot feeds one chunk of an InstallSnapshot stream. Returns
// an error if no snapshot support was configured (state does not
// implement snapshot.StateMachine).
func (e *Engine) InstallSnapshot(c snapshot.Chunk) error {
	if e.assembler == nil {
		return fmt.Errorf("engine: snapshot support not configured")
	}
	if err := e.assembler.Feed(c); err != nil {
		return err
	}
	if c.Done {
		e.events.Publish(&events.Event{
			Type:    events.EventSnapshotInstalled,
			Message: fmt.Sprintf("installed snapshot through index %d", c.LastIncludedIndex),
		})
	}
	return nil
}

// TakeSnapshot compacts the log at upToIndex, for operators or a
// size-triggered background policy to call directly.
func (e *Engine) TakeSnapshot(upToIndex uint64) error {
	if e.taker == nil {
		return fmt.Errorf("engine: snapshot support not configured")
	}
	if err := e.taker.TakeAt(upToIndex); err != nil {
		return err
	}
	e.events.Publish(&events.Event{
		Type:    events.EventSnapshotTaken,
		Message: fmt.Sprintf("compacted log through index %d", upToIndex),
	})
	return nil
}

// Log exposes the replicated log, mainly for transport-layer chunking
// of InstallSnapshot on the sending side and for tests.
func (e *Engine) Log() *replog.Log { return e.log }

// Node exposes the consensus node, mainly for tests.
func (e *Engine) Node() *consensus.Node { return e.node }
