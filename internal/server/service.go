// Service descriptor and client for parajoin.v1.JoinService.
// Messages are google.protobuf.Struct on both sides.
package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "parajoin.v1.JoinService"

// JoinServiceServer is the server API for JoinService
type JoinServiceServer interface {
	RebuildAll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyToggle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AlignStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetParagraph(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(JoinServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(JoinServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(JoinServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// JoinServiceDesc describes JoinService for grpc.Server.RegisterService
var JoinServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*JoinServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("RebuildAll", JoinServiceServer.RebuildAll),
		unaryHandler("ApplyToggle", JoinServiceServer.ApplyToggle),
		unaryHandler("AlignStatus", JoinServiceServer.AlignStatus),
		unaryHandler("GetParagraph", JoinServiceServer.GetParagraph),
		unaryHandler("Stats", JoinServiceServer.Stats),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "parajoin/v1/join.proto",
}

// RegisterJoinServiceServer registers srv on s
func RegisterJoinServiceServer(s grpc.ServiceRegistrar, srv JoinServiceServer) {
	s.RegisterService(&JoinServiceDesc, srv)
}

// JoinServiceClient calls JoinService over a connection
type JoinServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewJoinServiceClient creates a client on cc
func NewJoinServiceClient(cc grpc.ClientConnInterface) *JoinServiceClient {
	return &JoinServiceClient{cc: cc}
}

func (c *JoinServiceClient) invoke(ctx context.Context, method string, in map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *JoinServiceClient) RebuildAll(ctx context.Context, doc string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "RebuildAll", map[string]interface{}{"doc": doc}, opts...)
}

func (c *JoinServiceClient) ApplyToggle(ctx context.Context, doc, page, para string, join bool, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ApplyToggle", map[string]interface{}{
		"doc":  doc,
		"page": page,
		"para": para,
		"join": join,
	}, opts...)
}

func (c *JoinServiceClient) AlignStatus(ctx context.Context, doc string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "AlignStatus", map[string]interface{}{"doc": doc}, opts...)
}

func (c *JoinServiceClient) GetParagraph(ctx context.Context, doc, page, para string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetParagraph", map[string]interface{}{
		"doc":  doc,
		"page": page,
		"para": para,
	}, opts...)
}

func (c *JoinServiceClient) Stats(ctx context.Context, doc string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Stats", map[string]interface{}{"doc": doc}, opts...)
}
