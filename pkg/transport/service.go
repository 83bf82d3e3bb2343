package transport

import (
	"context"
	"io"

	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/Kylemclean11/Xline/pkg/engine"
	"github.com/Kylemclean11/Xline/pkg/log"
	"github.com/Kylemclean11/Xline/pkg/metrics"
	"github.com/Kylemclean11/Xline/pkg/snapshot"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const serviceName = "curp.Consensus"

// Server adapts an *engine.Engine to the grpc.ServiceDesc below. One
// Server per node process; registered on a single grpc.Server alongside
// whatever else shares the listener.
type Server struct {
	eng   *engine.Engine
	codec command.Codec
}

// NewServer wraps an engine for RPC serving. codec must be the same
// command.Codec the engine itself was constructed with.
func NewServer(eng *engine.Engine, codec command.Codec) *Server {
	return &Server{eng: eng, codec: codec}
}

func (s *Server) propose(ctx context.Context, in *wireProposeRequest) (*wireProposeResponse, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RPCDuration, "Propose")

	result, err := s.eng.Propose(ctx, in.Command)
	resp := &wireProposeResponse{}
	if err != nil {
		resp.ErrCode, resp.ErrDetail, resp.ConflictIDs = encodeErr(err)
		li := s.eng.FetchLeader()
		resp.LeaderID, resp.LeaderKnown, resp.Term = string(li.LeaderID), li.Known, li.Term
		metrics.RPCRequestsTotal.WithLabelValues("Propose", "error").Inc()
		return resp, nil
	}
	resp.Result = result
	metrics.RPCRequestsTotal.WithLabelValues("Propose", "ok").Inc()
	return resp, nil
}

func (s *Server) waitSynced(ctx context.Context, in *wireWaitSyncedRequest) (*wireWaitSyncedResponse, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RPCDuration, "WaitSynced")

	result, err := s.eng.WaitSynced(ctx, in.ID)
	resp := &wireWaitSyncedResponse{}
	if err != nil {
		resp.ErrCode, resp.ErrDetail, _ = encodeErr(err)
		metrics.RPCRequestsTotal.WithLabelValues("WaitSynced", "error").Inc()
		return resp, nil
	}
	resp.Result = result
	metrics.RPCRequestsTotal.WithLabelValues("WaitSynced", "ok").Inc()
	return resp, nil
}

func (s *Server) appendEntries(ctx context.Context, in *wireAppendEntriesRequest) (*wireAppendEntriesResponse, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RPCDuration, "AppendEntries")

	req, err := fromWireAppendEntriesRequest(s.codec, *in)
	if err != nil {
		metrics.RPCRequestsTotal.WithLabelValues("AppendEntries", "error").Inc()
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	resp := toWireAppendEntriesResponse(s.eng.AppendEntries(req))
	metrics.RPCRequestsTotal.WithLabelValues("AppendEntries", "ok").Inc()
	return &resp, nil
}

func (s *Server) vote(ctx context.Context, in *wireVoteRequest) (*wireVoteResponse, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RPCDuration, "Vote")

	req, err := fromWireVoteRequest(s.codec, *in)
	if err != nil {
		metrics.RPCRequestsTotal.WithLabelValues("Vote", "error").Inc()
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	resp, err := toWireVoteResponse(s.eng.Vote(req))
	if err != nil {
		metrics.RPCRequestsTotal.WithLabelValues("Vote", "error").Inc()
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	metrics.RPCRequestsTotal.WithLabelValues("Vote", "ok").Inc()
	return &resp, nil
}

func (s *Server) fetchLeader(ctx context.Context, in *emptyMessage) (*wireFetchLeaderResponse, error) {
	li := s.eng.FetchLeader()
	metrics.RPCRequestsTotal.WithLabelValues("FetchLeader", "ok").Inc()
	return &wireFetchLeaderResponse{
		LeaderID:         string(li.LeaderID),
		Known:            li.Known,
		Term:             li.Term,
		ElectionDeadline: timestamppb.New(li.ElectionDeadline),
	}, nil
}

func (s *Server) fetchReadState(ctx context.Context, in *wireFetchReadStateRequest) (*wireFetchReadStateResponse, error) {
	resp, err := s.eng.FetchReadState(in.Command)
	wire := toWireReadStateResponse(resp)
	if err != nil {
		wire.ErrCode, wire.ErrDetail, _ = encodeErr(err)
		metrics.RPCRequestsTotal.WithLabelValues("FetchReadState", "error").Inc()
		return &wire, nil
	}
	metrics.RPCRequestsTotal.WithLabelValues("FetchReadState", "ok").Inc()
	return &wire, nil
}

// installSnapshot drains a client-streaming InstallSnapshot call,
// feeding each chunk to the engine's snapshot assembler in order, then
// replies once with the final term observed.
func (s *Server) installSnapshot(stream grpc.ServerStream) error {
	var lastTerm uint64
	for {
		var chunk snapshot.Chunk
		if err := stream.RecvMsg(&chunk); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		lastTerm = chunk.Term
		if err := s.eng.InstallSnapshot(chunk); err != nil {
			log.Logger.Error().Err(err).Msg("install snapshot chunk failed")
			return status.Errorf(codes.Internal, "%v", err)
		}
	}
	return stream.SendMsg(&wireInstallSnapshotResponse{Term: lastTerm})
}

type emptyMessage struct{}

type wireInstallSnapshotResponse struct {
	Term uint64
}

func _Consensus_Propose_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wireProposeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).propose(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Propose"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).propose(ctx, req.(*wireProposeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Consensus_WaitSynced_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wireWaitSyncedRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).waitSynced(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/WaitSynced"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).waitSynced(ctx, req.(*wireWaitSyncedRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Consensus_AppendEntries_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wireAppendEntriesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).appendEntries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/AppendEntries"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).appendEntries(ctx, req.(*wireAppendEntriesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Consensus_Vote_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wireVoteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).vote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Vote"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).vote(ctx, req.(*wireVoteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Consensus_FetchLeader_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptyMessage)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).fetchLeader(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/FetchLeader"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).fetchLeader(ctx, req.(*emptyMessage))
	}
	return interceptor(ctx, in, info, handler)
}

func _Consensus_FetchReadState_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wireFetchReadStateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).fetchReadState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/FetchReadState"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).fetchReadState(ctx, req.(*wireFetchReadStateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Consensus_InstallSnapshot_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(*Server).installSnapshot(stream)
}

// ServiceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit from a .proto file, bound to the JSON codec registered in
// codec.go rather than protobuf wire encoding.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Propose", Handler: _Consensus_Propose_Handler},
		{MethodName: "WaitSynced", Handler: _Consensus_WaitSynced_Handler},
		{MethodName: "AppendEntries", Handler: _Consensus_AppendEntries_Handler},
		{MethodName: "Vote", Handler: _Consensus_Vote_Handler},
		{MethodName: "FetchLeader", Handler: _Consensus_FetchLeader_Handler},
		{MethodName: "FetchReadState", Handler: _Consensus_FetchReadState_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "InstallSnapshot",
			Handler:       _Consensus_InstallSnapshot_Handler,
			ClientStreams: true,
		},
	},
	Metadata: "curp/consensus.proto",
}

// Register attaches the consensus service to an existing grpc.Server.
func Register(grpcServer *grpc.Server, srv *Server) {
	grpcServer.RegisterService(&ServiceDesc, srv)
}
