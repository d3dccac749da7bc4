package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "crowd.v1.CrowdGame"

// Full method names, as seen by interceptors.
const (
	MethodStartGame   = "/" + ServiceName + "/StartGame"
	MethodGetGameView = "/" + ServiceName + "/GetGameView"
	MethodPlayCard    = "/" + ServiceName + "/PlayCard"
	MethodPass        = "/" + ServiceName + "/Pass"
	MethodEndGame     = "/" + ServiceName + "/EndGame"
	MethodListGames   = "/" + ServiceName + "/ListGames"
)

// CrowdGameServer is the server API of the game service. Requests and
// responses are free-form structs; see the handlers for the fields used.
type CrowdGameServer interface {
	StartGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGameView(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlayCard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Pass(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListGames(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(CrowdGameServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CrowdGameServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(CrowdGameServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// CrowdGameServiceDesc describes the game service for grpc.Server.
var CrowdGameServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CrowdGameServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("StartGame", CrowdGameServer.StartGame),
		unaryMethod("GetGameView", CrowdGameServer.GetGameView),
		unaryMethod("PlayCard", CrowdGameServer.PlayCard),
		unaryMethod("Pass", CrowdGameServer.Pass),
		unaryMethod("EndGame", CrowdGameServer.EndGame),
		unaryMethod("ListGames", CrowdGameServer.ListGames),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterCrowdGameServer registers srv on s.
func RegisterCrowdGameServer(s grpc.ServiceRegistrar, srv CrowdGameServer) {
	s.RegisterService(&CrowdGameServiceDesc, srv)
}

// CrowdGameClient calls the game service.
type CrowdGameClient struct {
	cc grpc.ClientConnInterface
}

// NewCrowdGameClient creates a client over cc.
func NewCrowdGameClient(cc grpc.ClientConnInterface) *CrowdGameClient {
	return &CrowdGameClient{cc: cc}
}

func (c *CrowdGameClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CrowdGameClient) StartGame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodStartGame, in, opts...)
}

func (c *CrowdGameClient) GetGameView(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetGameView, in, opts...)
}

func (c *CrowdGameClient) PlayCard(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPlayCard, in, opts...)
}

func (c *CrowdGameClient) Pass(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPass, in, opts...)
}

func (c *CrowdGameClient) EndGame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodEndGame, in, opts...)
}

func (c *CrowdGameClient) ListGames(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListGames, in, opts...)
}
