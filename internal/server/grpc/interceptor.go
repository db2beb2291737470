package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/tokenauth/internal/common"
	"github.com/dmitrijs2005/tokenauth/internal/server/authz"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// publicMethods are served without an access token.
var publicMethods = map[string]bool{
	MethodLogin:   true,
	MethodRefresh: true,
}

// methodRequirements are checked by the interceptor after authentication.
// Methods that depend on request content (UserPermissions) check in the
// handler instead.
var methodRequirements = map[string]authz.Requirement{
	MethodAssignRoles: authz.AssignRoles,
}

// requestIDInterceptor takes x-request-id from the incoming metadata or
// generates one, and echoes it in the response header.
func (s *GRPCServer) requestIDInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	id := firstMetadata(ctx, strings.ToLower(common.RequestIDHeaderName))
	if id == "" {
		id = uuid.NewString()
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(strings.ToLower(common.RequestIDHeaderName), id))
	return handler(common.WithRequestID(ctx, id), req)
}

// authInterceptor authenticates every non-public method, stores the
// principal in the context and enforces methodRequirements.
func (s *GRPCServer) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	token, ok := common.BearerToken(firstMetadata(ctx, common.AuthorizationHeaderName))
	if !ok {
		return nil, s.toStatus(ctx, common.ErrUnauthorized)
	}

	principal, err := s.authn.Authenticate(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	if r, ok := methodRequirements[info.FullMethod]; ok {
		if err := authz.Evaluate(principal, r); err != nil {
			s.logger.Info(ctx, "permission denied", "method", info.FullMethod, "user_id", principal.Identity.ID, "request_id", common.RequestIDFromContext(ctx))
			return nil, s.toStatus(ctx, err)
		}
	}

	return handler(authz.WithPrincipal(ctx, principal), req)
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
