package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the authentication service.
const ServiceName = "tokenauth.v1.AuthService"

// Full method names, as seen by interceptors.
const (
	MethodLogin           = "/" + ServiceName + "/Login"
	MethodRefresh         = "/" + ServiceName + "/Refresh"
	MethodMe              = "/" + ServiceName + "/Me"
	MethodUserPermissions = "/" + ServiceName + "/UserPermissions"
	MethodAssignRoles     = "/" + ServiceName + "/AssignRoles"
)

// AuthServiceServer is implemented by GRPCServer. Messages are
// google.protobuf.Struct documents.
type AuthServiceServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Me(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UserPermissions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AssignRoles(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(AuthServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AuthServiceDesc describes tokenauth.v1.AuthService for grpc.Server.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: unaryHandler(MethodLogin, AuthServiceServer.Login)},
		{MethodName: "Refresh", Handler: unaryHandler(MethodRefresh, AuthServiceServer.Refresh)},
		{MethodName: "Me", Handler: unaryHandler(MethodMe, AuthServiceServer.Me)},
		{MethodName: "UserPermissions", Handler: unaryHandler(MethodUserPermissions, AuthServiceServer.UserPermissions)},
		{MethodName: "AssignRoles", Handler: unaryHandler(MethodAssignRoles, AuthServiceServer.AssignRoles)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tokenauth/v1/auth.proto",
}

// RegisterAuthServiceServer registers srv on s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}
