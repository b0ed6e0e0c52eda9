package grpc

import (
    "context"
    "crypto/tls"
    "net"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/credentials"
    "google.golang.org/grpc/health"
    healthpb "google.golang.org/grpc/health/grpc_health_v1"
    "google.golang.org/grpc/keepalive"

    obsmetrics "github.com/amirimatin/go-consensus/pkg/observability/metrics"
    "github.com/amirimatin/go-consensus/pkg/observability/tracing"
    "github.com/amirimatin/go-consensus/pkg/raft"
    "github.com/amirimatin/go-consensus/pkg/transport"
)

// Server implements transport.RPCServer over gRPC using a JSON codec. It
// hosts the peer protocol (RequestVote, AppendEntries) and the management
// surface (GetStatus, Submit) on one listener.
type Server struct {
    bind   string
    lis    net.Listener
    srv    *grpc.Server
    tlsCfg *tls.Config
}

func NewServer(bind string) *Server { return &Server{bind: bind} }

// UseTLS enables TLS for the gRPC server using the provided config.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// internal request/response types used over gRPC JSON codec
type empty struct{}
type statusBlob struct {
    Data []byte `json:"data"`
}

// consensusServer defines the methods we expose.
type consensusServer interface {
    RequestVote(ctx context.Context, in *raft.RequestVote) (*raft.RequestVoteResponse, error)
    AppendEntries(ctx context.Context, in *raft.AppendEntries) (*raft.AppendEntriesResponse, error)
    GetStatus(ctx context.Context, in *empty) (*statusBlob, error)
    Submit(ctx context.Context, in *transport.SubmitRequest) (*transport.SubmitResponse, error)
}

type consensusImpl struct {
    handler transport.Handler
    status  transport.StatusFunc
    submit  transport.SubmitFunc
}

func (c *consensusImpl) RequestVote(ctx context.Context, in *raft.RequestVote) (*raft.RequestVoteResponse, error) {
    if in == nil { in = &raft.RequestVote{} }
    out, err := c.handler.HandleRequestVote(ctx, in)
    if err != nil {
        obsmetrics.PeerRPCs.WithLabelValues("request_vote", "error").Inc()
        return nil, err
    }
    obsmetrics.PeerRPCs.WithLabelValues("request_vote", "ok").Inc()
    return out, nil
}

func (c *consensusImpl) AppendEntries(ctx context.Context, in *raft.AppendEntries) (*raft.AppendEntriesResponse, error) {
    if in == nil { in = &raft.AppendEntries{} }
    out, err := c.handler.HandleAppendEntries(ctx, in)
    if err != nil {
        obsmetrics.PeerRPCs.WithLabelValues("append_entries", "error").Inc()
        return nil, err
    }
    obsmetrics.PeerRPCs.WithLabelValues("append_entries", "ok").Inc()
    return out, nil
}

func (c *consensusImpl) GetStatus(ctx context.Context, _ *empty) (*statusBlob, error) {
    ctx, end := tracing.StartSpan(ctx, "grpc.status")
    defer end()
    b, err := c.status(ctx)
    if err != nil { return nil, err }
    return &statusBlob{Data: b}, nil
}

func (c *consensusImpl) Submit(ctx context.Context, in *transport.SubmitRequest) (*transport.SubmitResponse, error) {
    if in == nil { in = &transport.SubmitRequest{} }
    ctx, end := tracing.StartSpan(ctx, "grpc.submit")
    defer end()
    out, err := c.submit(ctx, *in)
    if err != nil { return &transport.SubmitResponse{Accepted: false, Error: err.Error()}, nil }
    return &out, nil
}

// Service descriptor and handlers (hand-written, no codegen required)
var _Consensus_serviceDesc = grpc.ServiceDesc{
    ServiceName: "consensus.v1.Consensus",
    HandlerType: (*consensusServer)(nil),
    Methods: []grpc.MethodDesc{
        { MethodName: "RequestVote", Handler: _Consensus_RequestVote_Handler },
        { MethodName: "AppendEntries", Handler: _Consensus_AppendEntries_Handler },
        { MethodName: "GetStatus", Handler: _Consensus_GetStatus_Handler },
        { MethodName: "Submit", Handler: _Consensus_Submit_Handler },
    },
}

func _Consensus_RequestVote_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
    in := new(raft.RequestVote)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(consensusServer).RequestVote(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/consensus.v1.Consensus/RequestVote"}
    handler := func(ctx context.Context, req interface{}) (interface{}, error) {
        return srv.(consensusServer).RequestVote(ctx, req.(*raft.RequestVote))
    }
    return interceptor(ctx, in, info, handler)
}

func _Consensus_AppendEntries_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
    in := new(raft.AppendEntries)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(consensusServer).AppendEntries(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/consensus.v1.Consensus/AppendEntries"}
    handler := func(ctx context.Context, req interface{}) (interface{}, error) {
        return srv.(consensusServer).AppendEntries(ctx, req.(*raft.AppendEntries))
    }
    return interceptor(ctx, in, info, handler)
}

func _Consensus_GetStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
    in := new(empty)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(consensusServer).GetStatus(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/consensus.v1.Consensus/GetStatus"}
    handler := func(ctx context.Context, req interface{}) (interface{}, error) {
        return srv.(consensusServer).GetStatus(ctx, req.(*empty))
    }
    return interceptor(ctx, in, info, handler)
}

func _Consensus_Submit_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
    in := new(transport.SubmitRequest)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(consensusServer).Submit(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/consensus.v1.Consensus/Submit"}
    handler := func(ctx context.Context, req interface{}) (interface{}, error) {
        return srv.(consensusServer).Submit(ctx, req.(*transport.SubmitRequest))
    }
    return interceptor(ctx, in, info, handler)
}

func (s *Server) Start(ctx context.Context, h transport.Handler, status transport.StatusFunc, submit transport.SubmitFunc) error {
    lis, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    s.lis = lis
    // Force JSON codec to avoid requiring protobuf types
    var opts []grpc.ServerOption
    opts = append(opts, grpc.ForceServerCodec(jsonCodec{}))
    opts = append(opts, grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 5 * time.Second, PermitWithoutStream: true}))
    opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{Time: 30 * time.Second, Timeout: 10 * time.Second}))
    if s.tlsCfg != nil { opts = append(opts, grpc.Creds(credentials.NewTLS(s.tlsCfg))) }
    srv := grpc.NewServer(opts...)
    s.srv = srv
    // Health service (always serving for now)
    healthSrv := health.NewServer()
    healthpb.RegisterHealthServer(srv, healthSrv)
    srv.RegisterService(&_Consensus_serviceDesc, &consensusImpl{handler: h, status: status, submit: submit})

    go func() {
        <-ctx.Done()
        // Graceful stop with a small timeout fallback
        ch := make(chan struct{})
        go func() { srv.GracefulStop(); close(ch) }()
        select {
        case <-ch:
        case <-time.After(2 * time.Second):
            srv.Stop()
        }
    }()
    go func() { _ = srv.Serve(lis) }()
    return nil
}

func (s *Server) Addr() string {
    if s.lis != nil { return s.lis.Addr().String() }
    return s.bind
}

func (s *Server) Stop(ctx context.Context) error {
    if s.srv == nil { return nil }
    ch := make(chan struct{})
    go func() { s.srv.GracefulStop(); close(ch) }()
    select {
    case <-ch:
    case <-ctx.Done():
        s.srv.Stop()
    }
    s.srv = nil
    if s.lis != nil { _ = s.lis.Close(); s.lis = nil }
    return nil
}

var _ transport.RPCServer = (*Server)(nil)
