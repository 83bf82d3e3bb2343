package transport

import (
	"fmt"

	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/Kylemclean11/Xline/pkg/consensus"
	"github.com/Kylemclean11/Xline/pkg/pipeline"
	"github.com/Kylemclean11/Xline/pkg/readstate"
	"github.com/Kylemclean11/Xline/pkg/replog"
	"github.com/Kylemclean11/Xline/pkg/specpool"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// The wire* types below are the plain, codec-agnostic structs the JSON
// codec actually marshals. consensus.VoteRequest et al. cannot cross the
// wire directly: their Entries/SpecPool fields hold command.Command
// interface values, which JSON can encode but never decode back into a
// concrete type. Every RPC boundary therefore flattens commands to their
// Marshal()'d bytes and reconstitutes them via a command.Codec on the
// receiving side.

type wireLogEntry struct {
	Term    uint64
	Index   uint64
	Command []byte
}

type wireSpecEntry struct {
	CmdID    command.ID
	Command  []byte
	SpecTerm uint64
}

type wireVoteRequest struct {
	Term         uint64
	CandidateID  string
	LastLogIndex uint64
	LastLogTerm  uint64
	SpecPool     []wireSpecEntry
}

type wireVoteResponse struct {
	Term        uint64
	VoteGranted bool
	SpecPool    []wireSpecEntry
}

type wireAppendEntriesRequest struct {
	Term         uint64
	LeaderID     string
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []wireLogEntry
	LeaderCommit uint64
	SpecPool     []wireSpecEntry
}

type wireAppendEntriesResponse struct {
	Term      uint64
	Success   bool
	HintIndex uint64
}

type wireProposeRequest struct {
	Command []byte
}

type wireProposeResponse struct {
	LeaderID    string
	LeaderKnown bool
	Term        uint64
	Result      []byte
	ErrCode     string
	ErrDetail   string
	ConflictIDs [][16]byte
}

type wireWaitSyncedRequest struct {
	ID command.ID
}

type wireWaitSyncedResponse struct {
	Result    []byte
	ErrCode   string
	ErrDetail string
}

type wireFetchLeaderResponse struct {
	LeaderID string
	Known    bool
	Term     uint64
	// ElectionDeadline is a diagnostic field (§6 FetchLeader carries only
	// leader_id/term on the wire; this is additive, not a protocol
	// requirement), carried as a well-known protobuf Timestamp.
	ElectionDeadline *timestamppb.Timestamp
}

type wireFetchReadStateRequest struct {
	Command []byte
}

type wireFetchReadStateResponse struct {
	Kind      int
	Index     uint64
	IDs       []command.ID
	ErrCode   string
	ErrDetail string
}

// Error codes carried in ErrCode per §6/§7. Empty means success.
const (
	errNotLeader     = "NotLeader"
	errBusy          = "Busy"
	errShuttingDown  = "ShuttingDown"
	errEncoding      = "EncodingError"
	errKeyConflict   = "KeyConflict"
	errDuplicate     = "DuplicateCommand"
	errUnimplemented = "Unimplemented"
)

// encodeErr splits a pipeline error into a wire code/detail pair and,
// for KeyConflictError, the conflicting command ids it carries.
func encodeErr(err error) (code, detail string, conflictIDs [][16]byte) {
	if err == nil {
		return "", "", nil
	}
	switch {
	case err == pipeline.ErrNotLeader:
		return errNotLeader, err.Error(), nil
	case err == pipeline.ErrBusy:
		return errBusy, err.Error(), nil
	case err == pipeline.ErrShuttingDown:
		return errShuttingDown, err.Error(), nil
	case err == pipeline.ErrEncoding:
		return errEncoding, err.Error(), nil
	default:
		if kc, ok := err.(*pipeline.KeyConflictError); ok {
			return errKeyConflict, kc.Error(), kc.ConflictingIDs
		}
		return errUnimplemented, err.Error(), nil
	}
}

func decodeErr(code, detail string, conflictIDs [][16]byte) error {
	switch code {
	case "":
		return nil
	case errNotLeader:
		return pipeline.ErrNotLeader
	case errBusy:
		return pipeline.ErrBusy
	case errShuttingDown:
		return pipeline.ErrShuttingDown
	case errEncoding:
		return pipeline.ErrEncoding
	case errKeyConflict:
		return &pipeline.KeyConflictError{ConflictingIDs: conflictIDs}
	default:
		return fmt.Errorf("transport: %s: %s", code, detail)
	}
}

func toWireSpecEntries(entries []specpool.Entry) ([]wireSpecEntry, error) {
	out := make([]wireSpecEntry, len(entries))
	for i, e := range entries {
		data, err := e.Command.Marshal()
		if err != nil {
			return nil, fmt.Errorf("transport: marshal spec entry: %w", err)
		}
		out[i] = wireSpecEntry{CmdID: e.CmdID, Command: data, SpecTerm: e.SpecTerm}
	}
	return out, nil
}

func fromWireSpecEntries(codec command.Codec, entries []wireSpecEntry) ([]specpool.Entry, error) {
	out := make([]specpool.Entry, len(entries))
	for i, e := range entries {
		cmd, err := codec.Decode(e.Command)
		if err != nil {
			return nil, fmt.Errorf("transport: decode spec entry: %w", err)
		}
		out[i] = specpool.Entry{CmdID: e.CmdID, Command: cmd, SpecTerm: e.SpecTerm}
	}
	return out, nil
}

func toWireLogEntries(entries []replog.Entry) ([]wireLogEntry, error) {
	out := make([]wireLogEntry, len(entries))
	for i, e := range entries {
		data, err := e.Command.Marshal()
		if err != nil {
			return nil, fmt.Errorf("transport: marshal log entry: %w", err)
		}
		out[i] = wireLogEntry{Term: e.Term, Index: e.Index, Command: data}
	}
	return out, nil
}

func fromWireLogEntries(codec command.Codec, entries []wireLogEntry) ([]replog.Entry, error) {
	out := make([]replog.Entry, len(entries))
	for i, e := range entries {
		cmd, err := codec.Decode(e.Command)
		if err != nil {
			return nil, fmt.Errorf("transport: decode log entry: %w", err)
		}
		out[i] = replog.Entry{Term: e.Term, Index: e.Index, Command: cmd}
	}
	return out, nil
}

func toWireVoteRequest(req consensus.VoteRequest) (wireVoteRequest, error) {
	pool, err := toWireSpecEntries(req.SpecPool)
	if err != nil {
		return wireVoteRequest{}, err
	}
	return wireVoteRequest{
		Term:         req.Term,
		CandidateID:  string(req.CandidateID),
		LastLogIndex: req.LastLogIndex,
		LastLogTerm:  req.LastLogTerm,
		SpecPool:     pool,
	}, nil
}

func fromWireVoteRequest(codec command.Codec, w wireVoteRequest) (consensus.VoteRequest, error) {
	pool, err := fromWireSpecEntries(codec, w.SpecPool)
	if err != nil {
		return consensus.VoteRequest{}, err
	}
	return consensus.VoteRequest{
		Term:         w.Term,
		CandidateID:  consensus.PeerID(w.CandidateID),
		LastLogIndex: w.LastLogIndex,
		LastLogTerm:  w.LastLogTerm,
		SpecPool:     pool,
	}, nil
}

func toWireVoteResponse(resp consensus.VoteResponse) (wireVoteResponse, error) {
	pool, err := toWireSpecEntries(resp.SpecPool)
	if err != nil {
		return wireVoteResponse{}, err
	}
	return wireVoteResponse{Term: resp.Term, VoteGranted: resp.VoteGranted, SpecPool: pool}, nil
}

func fromWireVoteResponse(codec command.Codec, w wireVoteResponse) (consensus.VoteResponse, error) {
	pool, err := fromWireSpecEntries(codec, w.SpecPool)
	if err != nil {
		return consensus.VoteResponse{}, err
	}
	return consensus.VoteResponse{Term: w.Term, VoteGranted: w.VoteGranted, SpecPool: pool}, nil
}

func toWireAppendEntriesRequest(req consensus.AppendEntriesRequest) (wireAppendEntriesRequest, error) {
	entries, err := toWireLogEntries(req.Entries)
	if err != nil {
		return wireAppendEntriesRequest{}, err
	}
	pool, err := toWireSpecEntries(req.SpecPool)
	if err != nil {
		return wireAppendEntriesRequest{}, err
	}
	return wireAppendEntriesRequest{
		Term:         req.Term,
		LeaderID:     string(req.LeaderID),
		PrevLogIndex: req.PrevLogIndex,
		PrevLogTerm:  req.PrevLogTerm,
		Entries:      entries,
		LeaderCommit: req.LeaderCommit,
		SpecPool:     pool,
	}, nil
}

func fromWireAppendEntriesRequest(codec command.Codec, w wireAppendEntriesRequest) (consensus.AppendEntriesRequest, error) {
	entries, err := fromWireLogEntries(codec, w.Entries)
	if err != nil {
		return consensus.AppendEntriesRequest{}, err
	}
	pool, err := fromWireSpecEntries(codec, w.SpecPool)
	if err != nil {
		return consensus.AppendEntriesRequest{}, err
	}
	return consensus.AppendEntriesRequest{
		Term:         w.Term,
		LeaderID:     consensus.PeerID(w.LeaderID),
		PrevLogIndex: w.PrevLogIndex,
		PrevLogTerm:  w.PrevLogTerm,
		Entries:      entries,
		LeaderCommit: w.LeaderCommit,
		SpecPool:     pool,
	}, nil
}

func toWireAppendEntriesResponse(resp consensus.AppendEntriesResponse) wireAppendEntriesResponse {
	return wireAppendEntriesResponse{Term: resp.Term, Success: resp.Success, HintIndex: resp.HintIndex}
}

func fromWireAppendEntriesResponse(w wireAppendEntriesResponse) consensus.AppendEntriesResponse {
	return consensus.AppendEntriesResponse{Term: w.Term, Success: w.Success, HintIndex: w.HintIndex}
}

func toWireReadStateResponse(resp readstate.Response) wireFetchReadStateResponse {
	return wireFetchReadStateResponse{Kind: int(resp.Kind), Index: resp.Index, IDs: resp.IDs}
}

func fromWireReadStateResponse(w wireFetchReadStateResponse) readstate.Response {
	return readstate.Response{Kind: readstate.Kind(w.Kind), Index: w.Index, IDs: w.IDs}
}
