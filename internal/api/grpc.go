package api

import (
	"context"
	"encoding/json"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// CodecName is the content-subtype of LiveService calls.
const CodecName = "json"

const serviceName = "cubo.v1.LiveService"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// LiveServer is the server API of cubo.v1.LiveService.
type LiveServer interface {
	Tail(context.Context, *TailRequest) (*TailResponse, error)
	GetState(context.Context, *StateRequest) (*StateResponse, error)
	SetPending(context.Context, *PendingRequest) (*PendingResponse, error)
	Regenerate(context.Context, *RegenerateRequest) (*RegenerateResponse, error)
	Finalize(context.Context, *FinalizeRequest) (*FinalizeResponse, error)
}

// LiveServiceDesc describes cubo.v1.LiveService. Messages are JSON encoded,
// so there is no generated protobuf code behind it.
var LiveServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LiveServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Tail", Handler: unary("Tail", LiveServer.Tail)},
		{MethodName: "GetState", Handler: unary("GetState", LiveServer.GetState)},
		{MethodName: "SetPending", Handler: unary("SetPending", LiveServer.SetPending)},
		{MethodName: "Regenerate", Handler: unary("Regenerate", LiveServer.Regenerate)},
		{MethodName: "Finalize", Handler: unary("Finalize", LiveServer.Finalize)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cubo/v1/live",
}

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unary[Req, Resp any](name string, call func(LiveServer, context.Context, *Req) (*Resp, error)) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LiveServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LiveServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// GRPCServer adapts Live to LiveServer.
type GRPCServer struct {
	live *Live
}

// NewGRPCServer creates a gRPC server with LiveService registered.
func NewGRPCServer(live *Live, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	s.RegisterService(&LiveServiceDesc, &GRPCServer{live: live})
	return s
}

func toStatus(err error) error {
	code := grpcCode(err)
	if code == codes.Internal {
		log.Printf("[api] gRPC request failed: %v", err)
	}
	return status.Error(code, err.Error())
}

func (s *GRPCServer) Tail(ctx context.Context, req *TailRequest) (*TailResponse, error) {
	resp, err := s.live.Tail(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *GRPCServer) GetState(ctx context.Context, _ *StateRequest) (*StateResponse, error) {
	resp, err := s.live.State(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *GRPCServer) SetPending(ctx context.Context, req *PendingRequest) (*PendingResponse, error) {
	resp, err := s.live.SetPending(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *GRPCServer) Regenerate(ctx context.Context, _ *RegenerateRequest) (*RegenerateResponse, error) {
	resp, err := s.live.Regenerate(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *GRPCServer) Finalize(ctx context.Context, _ *FinalizeRequest) (*FinalizeResponse, error) {
	resp, err := s.live.Finalize(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}
