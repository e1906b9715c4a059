package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "usermanagement.v1.UserService"

// Full method names.
const (
	MethodListUsers   = "/" + ServiceName + "/ListUsers"
	MethodFilterUsers = "/" + ServiceName + "/FilterUsers"
	MethodSearchUsers = "/" + ServiceName + "/SearchUsers"
	MethodGetUser     = "/" + ServiceName + "/GetUser"
	MethodCreateUser  = "/" + ServiceName + "/CreateUser"
	MethodUpdateUser  = "/" + ServiceName + "/UpdateUser"
	MethodDeleteUser  = "/" + ServiceName + "/DeleteUser"
	MethodWatchUsers  = "/" + ServiceName + "/WatchUsers"
)

// UserServiceServer is the server API. Requests and responses are
// google.protobuf.Struct documents; see codec.go for their shape.
type UserServiceServer interface {
	ListUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FilterUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchUsers(*structpb.Struct, grpc.ServerStream) error
}

type unaryCall func(UserServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(UserServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(UserServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(UserServiceServer).WatchUsers(in, stream)
}

// ServiceDesc describes UserService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UserServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListUsers", Handler: unaryHandler(MethodListUsers, UserServiceServer.ListUsers)},
		{MethodName: "FilterUsers", Handler: unaryHandler(MethodFilterUsers, UserServiceServer.FilterUsers)},
		{MethodName: "SearchUsers", Handler: unaryHandler(MethodSearchUsers, UserServiceServer.SearchUsers)},
		{MethodName: "GetUser", Handler: unaryHandler(MethodGetUser, UserServiceServer.GetUser)},
		{MethodName: "CreateUser", Handler: unaryHandler(MethodCreateUser, UserServiceServer.CreateUser)},
		{MethodName: "UpdateUser", Handler: unaryHandler(MethodUpdateUser, UserServiceServer.UpdateUser)},
		{MethodName: "DeleteUser", Handler: unaryHandler(MethodDeleteUser, UserServiceServer.DeleteUser)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchUsers", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "usermanagement/v1/user_service.proto",
}

// RegisterUserServiceServer registers srv with s.
func RegisterUserServiceServer(s grpc.ServiceRegistrar, srv UserServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
