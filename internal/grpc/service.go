package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service. Requests and responses are
// google.protobuf.Struct documents shaped like the JSON-RPC payloads.
const ServiceName = "ctxmeter.v1.Plugin"

const (
	methodOutlet   = "/" + ServiceName + "/Outlet"
	methodCallTool = "/" + ServiceName + "/CallTool"
	methodStatus   = "/" + ServiceName + "/Status"
)

type PluginServiceServer interface {
	Outlet(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CallTool(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Status(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(fullMethod string, call func(PluginServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(PluginServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PluginServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var PluginServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PluginServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Outlet",
			Handler:    unaryHandler(methodOutlet, PluginServiceServer.Outlet),
		},
		{
			MethodName: "CallTool",
			Handler:    unaryHandler(methodCallTool, PluginServiceServer.CallTool),
		},
		{
			MethodName: "Status",
			Handler:    unaryHandler(methodStatus, PluginServiceServer.Status),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ctxmeter/v1/plugin.proto",
}

func RegisterPluginServiceServer(s grpc.ServiceRegistrar, srv PluginServiceServer) {
	s.RegisterService(&PluginServiceDesc, srv)
}

type PluginServiceClient interface {
	Outlet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	CallTool(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Status(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type pluginServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPluginServiceClient(cc grpc.ClientConnInterface) PluginServiceClient {
	return &pluginServiceClient{cc: cc}
}

func (c *pluginServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pluginServiceClient) Outlet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodOutlet, in, opts)
}

func (c *pluginServiceClient) CallTool(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodCallTool, in, opts)
}

func (c *pluginServiceClient) Status(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodStatus, in, opts)
}
