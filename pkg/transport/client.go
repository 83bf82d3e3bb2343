package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/Kylemclean11/Xline/pkg/consensus"
	"github.com/Kylemclean11/Xline/pkg/engine"
	"github.com/Kylemclean11/Xline/pkg/readstate"
	"github.com/Kylemclean11/Xline/pkg/snapshot"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// PeerDialer resolves a consensus.PeerID to a dial address and lazily
// maintains one grpc.ClientConn per peer, reused across calls.
type PeerDialer struct {
	addrs map[consensus.PeerID]string
	conns map[consensus.PeerID]*grpc.ClientConn
}

// NewPeerDialer creates a dialer over a static address book, matching
// §6's "cluster membership is static at boot" rule.
func NewPeerDialer(addrs map[consensus.PeerID]string) *PeerDialer {
	return &PeerDialer{addrs: addrs, conns: make(map[consensus.PeerID]*grpc.ClientConn)}
}

func (d *PeerDialer) conn(peer consensus.PeerID) (*grpc.ClientConn, error) {
	if c, ok := d.conns[peer]; ok {
		return c, nil
	}
	addr, ok := d.addrs[peer]
	if !ok {
		return nil, fmt.Errorf("transport: no address configured for peer %q", peer)
	}
	c, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", peer, err)
	}
	d.conns[peer] = c
	return c, nil
}

// Close closes every dialed connection.
func (d *PeerDialer) Close() error {
	var first error
	for _, c := range d.conns {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PeerTransport implements consensus.Transport over gRPC, the concrete
// collaborator consensus.Node needs for Vote/AppendEntries fan-out.
type PeerTransport struct {
	dialer *PeerDialer
	codec  command.Codec
}

// NewPeerTransport creates a consensus.Transport bound to a dialer and
// the deployment's command codec (needed to reconstitute log/spec-pool
// entries carried in AppendEntries/Vote payloads).
func NewPeerTransport(dialer *PeerDialer, codec command.Codec) *PeerTransport {
	return &PeerTransport{dialer: dialer, codec: codec}
}

func (t *PeerTransport) SendVote(ctx context.Context, peer consensus.PeerID, req consensus.VoteRequest) (consensus.VoteResponse, error) {
	conn, err := t.dialer.conn(peer)
	if err != nil {
		return consensus.VoteResponse{}, err
	}
	wreq, err := toWireVoteRequest(req)
	if err != nil {
		return consensus.VoteResponse{}, err
	}
	wresp := new(wireVoteResponse)
	if err := conn.Invoke(ctx, "/"+serviceName+"/Vote", &wreq, wresp); err != nil {
		return consensus.VoteResponse{}, err
	}
	return fromWireVoteResponse(t.codec, *wresp)
}

func (t *PeerTransport) SendAppendEntries(ctx context.Context, peer consensus.PeerID, req consensus.AppendEntriesRequest) (consensus.AppendEntriesResponse, error) {
	conn, err := t.dialer.conn(peer)
	if err != nil {
		return consensus.AppendEntriesResponse{}, err
	}
	wreq, err := toWireAppendEntriesRequest(req)
	if err != nil {
		return consensus.AppendEntriesResponse{}, err
	}
	wresp := new(wireAppendEntriesResponse)
	if err := conn.Invoke(ctx, "/"+serviceName+"/AppendEntries", &wreq, wresp); err != nil {
		return consensus.AppendEntriesResponse{}, err
	}
	return fromWireAppendEntriesResponse(*wresp), nil
}

var _ consensus.Transport = (*PeerTransport)(nil)

// Client is the thin CLI-facing RPC caller §6 describes: dial an address
// and invoke one RPC at a time. It is explicitly not the
// retrying/leader-caching client library spec.md scopes out.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a single node's address.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Propose invokes the Propose RPC.
func (c *Client) Propose(ctx context.Context, raw []byte) (command.ExecResult, engine.LeaderInfo, error) {
	resp := new(wireProposeResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Propose", &wireProposeRequest{Command: raw}, resp); err != nil {
		return nil, engine.LeaderInfo{}, err
	}
	li := engine.LeaderInfo{LeaderID: consensus.PeerID(resp.LeaderID), Known: resp.LeaderKnown, Term: resp.Term}
	return resp.Result, li, decodeErr(resp.ErrCode, resp.ErrDetail, resp.ConflictIDs)
}

// WaitSynced invokes the WaitSynced RPC.
func (c *Client) WaitSynced(ctx context.Context, id command.ID) (command.AfterSyncResult, error) {
	resp := new(wireWaitSyncedResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/WaitSynced", &wireWaitSyncedRequest{ID: id}, resp); err != nil {
		return nil, err
	}
	return resp.Result, decodeErr(resp.ErrCode, resp.ErrDetail, nil)
}

// FetchLeader invokes the FetchLeader RPC.
func (c *Client) FetchLeader(ctx context.Context) (engine.LeaderInfo, error) {
	resp := new(wireFetchLeaderResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/FetchLeader", &emptyMessage{}, resp); err != nil {
		return engine.LeaderInfo{}, err
	}
	li := engine.LeaderInfo{LeaderID: consensus.PeerID(resp.LeaderID), Known: resp.Known, Term: resp.Term}
	if resp.ElectionDeadline != nil {
		li.ElectionDeadline = resp.ElectionDeadline.AsTime()
	}
	return li, nil
}

// FetchReadState invokes the FetchReadState RPC.
func (c *Client) FetchReadState(ctx context.Context, raw []byte) (readstate.Response, error) {
	resp := new(wireFetchReadStateResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/FetchReadState", &wireFetchReadStateRequest{Command: raw}, resp); err != nil {
		return readstate.Response{}, err
	}
	return fromWireReadStateResponse(*resp), decodeErr(resp.ErrCode, resp.ErrDetail, nil)
}

// InstallSnapshot streams a sequence of chunks to a peer's InstallSnapshot
// RPC, matching §4.7's chunked, ordered streaming semantics.
func (c *Client) InstallSnapshot(ctx context.Context, chunks []snapshot.Chunk) (uint64, error) {
	desc := &grpc.StreamDesc{StreamName: "InstallSnapshot", ClientStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, "/"+serviceName+"/InstallSnapshot")
	if err != nil {
		return 0, err
	}
	for _, chunk := range chunks {
		if err := stream.SendMsg(&chunk); err != nil {
			return 0, err
		}
	}
	if err := stream.CloseSend(); err != nil {
		return 0, err
	}
	resp := new(wireInstallSnapshotResponse)
	if err := stream.RecvMsg(resp); err != nil && err != io.EOF {
		return 0, err
	}
	return resp.Term, nil
}
