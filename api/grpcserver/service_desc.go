package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Requests and replies are protobuf well-known types, so any gRPC client
// can call the service without generated stubs:
//
//	SubmitOrder(BytesValue order)   -> UInt64Value arrival sequence
//	GetRound(BytesValue pool id)    -> BytesValue encoded round
//	GetBounds(BytesValue pool id)   -> Struct {seq, lowest, highest, digest, ...}
const (
	ServiceName       = "poolbook.v1.Rounds"
	MethodSubmitOrder = "/" + ServiceName + "/SubmitOrder"
	MethodGetRound    = "/" + ServiceName + "/GetRound"
	MethodGetBounds   = "/" + ServiceName + "/GetBounds"
)

// RoundsServer is implemented by Server.
type RoundsServer interface {
	SubmitOrder(context.Context, *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error)
	GetRound(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	GetBounds(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RoundsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitOrder", Handler: unary(MethodSubmitOrder, RoundsServer.SubmitOrder)},
		{MethodName: "GetRound", Handler: unary(MethodGetRound, RoundsServer.GetRound)},
		{MethodName: "GetBounds", Handler: unary(MethodGetBounds, RoundsServer.GetBounds)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "poolbook/v1/rounds.proto",
}

func Register(s grpc.ServiceRegistrar, srv RoundsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary adapts a typed method to grpc's handler shape.
func unary[Req any, Resp any](
	fullMethod string,
	call func(RoundsServer, context.Context, *Req) (Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RoundsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RoundsServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls the Rounds service over conn.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) SubmitOrder(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, MethodSubmitOrder, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetRound(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, MethodGetRound, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetBounds(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGetBounds, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
