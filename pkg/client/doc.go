/*
Package client is the CLI-facing wrapper cmd/curpd is built on: dial one
node, invoke one RPC, get back a typed result or a NotLeader error
carrying the current leader's node id.

# Usage

	c, err := client.New("10.0.0.1:7000")
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	result, leader, err := c.Propose(raw)
	if err == pipeline.ErrNotLeader {
		// redial leader.LeaderID and retry
	}

# Scope

This package does not retry, does not cache or follow the leader across
calls, and does not pool connections across addresses — each Client is
bound to one node. A production deployment wanting those properties
builds them on top; they are explicitly out of scope here, the same way
the underlying protocol leaves client-side retry policy unspecified.
*/
package client
