// Package client is the thin CLI-facing RPC caller used by cmd/curpd: it
// dials one node's address and invokes one RPC at a time, each under a
// default timeout. It is deliberately not the retrying, leader-caching
// client library a production deployment would want — that layer is out
// of scope here, same as it is for the protocol itself.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/Kylemclean11/Xline/pkg/engine"
	"github.com/Kylemclean11/Xline/pkg/readstate"
	"github.com/Kylemclean11/Xline/pkg/transport"
)

const defaultTimeout = 10 * time.Second

// Client wraps a transport.Client with CLI-friendly, timeout-bounded
// methods, one per node operation.
type Client struct {
	tc *transport.Client
}

// New dials addr and returns a ready Client.
func New(addr string) (*Client, error) {
	tc, err := transport.Dial(addr)
	if err != nil {
		return nil, err
	}
	return &Client{tc: tc}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.tc.Close() }

// Propose submits a command and returns its fast-path execution result.
// A NotLeader error carries the current leader's identity in the
// returned LeaderInfo so a caller can redial there.
func (c *Client) Propose(raw []byte) (command.ExecResult, engine.LeaderInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return c.tc.Propose(ctx, raw)
}

// WaitSynced blocks for a command's after-sync result.
func (c *Client) WaitSynced(id command.ID) (command.AfterSyncResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return c.tc.WaitSynced(ctx, id)
}

// FetchLeader returns the node's current view of cluster leadership.
func (c *Client) FetchLeader() (engine.LeaderInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return c.tc.FetchLeader(ctx)
}

// FetchReadState returns the ReadIndex/ids a linearizable read must wait
// on before it may be served, per §4.8. Only the leader answers this.
func (c *Client) FetchReadState(raw []byte) (readstate.Response, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return c.tc.FetchReadState(ctx, raw)
}

// Status is a human-oriented summary of FetchLeader, the shape
// cmd/curpd's "status" subcommand prints.
type Status struct {
	LeaderKnown      bool
	LeaderID         string
	Term             uint64
	ElectionDeadline time.Time
}

// FetchStatus fetches and formats leadership status.
func (c *Client) FetchStatus() (Status, error) {
	li, err := c.FetchLeader()
	if err != nil {
		return Status{}, fmt.Errorf("client: fetch status: %w", err)
	}
	return Status{
		LeaderKnown:      li.Known,
		LeaderID:         string(li.LeaderID),
		Term:             li.Term,
		ElectionDeadline: li.ElectionDeadline,
	}, nil
}
