/*
Package transport implements the consensus engine's wire layer (C9): a
gRPC service binding six unary RPCs and one client-streaming RPC to an
*engine.Engine, plus the client side that drives them.

# Architecture

	┌──────────────────────── CLIENT / PEER ─────────────────────────┐
	│                                                                  │
	│  pkg/client, cmd/curpd           consensus.Node (peer fan-out)  │
	│       │                                   │                     │
	│  transport.Client                 transport.PeerTransport       │
	│       │                                   │                     │
	└───────┼───────────────────────────────────┼─────────────────────┘
	        │              gRPC (JSON codec)     │
	┌───────▼───────────────────────────────────▼─────────────────────┐
	│                         NODE PROCESS                             │
	│  ┌─────────────────────────────────────────────────────────┐    │
	│  │            transport.Server (grpc.ServiceDesc)           │    │
	│  │  Propose · WaitSynced · AppendEntries · Vote ·           │    │
	│  │  FetchLeader · FetchReadState · InstallSnapshot (stream) │    │
	│  └──────────────────────────┬────────────────────────────────┘  │
	│                             │                                    │
	│                      engine.Engine                               │
	└───────────────────────────────────────────────────────────────────┘

# No .proto files

This package has no generated protoc-gen-go-grpc bindings: the
grpc.ServiceDesc, the per-method grpc.MethodDesc/grpc.StreamDesc
handlers, and the wire message structs in messages.go are written by
hand, the way server.go does in a repo that keeps its .proto file and
generated code alongside. Wire encoding is plain JSON via a
google.golang.org/grpc/encoding.Codec registered under the name
"proto" in codec.go, which is the content-subtype grpc-go selects by
default when a call specifies none — registering under that name is
sufficient to make an unmodified grpc.Server and grpc.ClientConn speak
JSON instead of protobuf without touching call sites.

# Wire types

consensus.VoteRequest, consensus.AppendEntriesRequest and friends carry
command.Command interface values in their Entries/SpecPool fields,
which JSON can marshal but never unmarshal back into a concrete type.
Every RPC boundary in messages.go therefore flattens commands to their
Marshal()'d bytes (wireLogEntry, wireSpecEntry) and reconstitutes them
via the deployment's command.Codec on the receiving side.

# Errors

Application errors (ErrNotLeader, ErrBusy, ErrShuttingDown,
ErrEncoding, KeyConflictError) are carried as a string code plus detail
in the response message rather than as gRPC status errors, since a
NotLeader or KeyConflict response is an expected, structured outcome a
caller branches on rather than a transport failure. gRPC status codes
are reserved for transport/protocol-level failures: a malformed
request (InvalidArgument) or an unexpected internal error (Internal).

# Usage

Serving:

	srv := transport.NewServer(eng, codec)
	grpcServer := grpc.NewServer()
	transport.Register(grpcServer, srv)
	lis, _ := net.Listen("tcp", addr)
	grpcServer.Serve(lis)

Calling a single node:

	c, err := transport.Dial(addr)
	result, leader, err := c.Propose(ctx, raw)

Wiring peer-to-peer consensus transport:

	dialer := transport.NewPeerDialer(peerAddrs)
	pt := transport.NewPeerTransport(dialer, codec)
	eng, err := engine.New(cfg, pt, codec, state, store)

# See Also

  - pkg/engine for the operations this package exposes over the wire
  - pkg/consensus for the Transport interface PeerTransport implements
  - pkg/client for the higher-level CLI-facing wrapper
*/
package transport
