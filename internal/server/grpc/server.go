// Package grpc exposes the authentication service over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/tokenauth/internal/logging"
	"github.com/dmitrijs2005/tokenauth/internal/server/authz"
	"github.com/dmitrijs2005/tokenauth/internal/server/models"
	"github.com/dmitrijs2005/tokenauth/internal/server/services"
	"google.golang.org/grpc"
)

// Sessions issues and refreshes token pairs.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

// Authenticator resolves an access token into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*authz.Principal, error)
}

// Accounts covers the account administration used by the service.
type Accounts interface {
	EffectivePermissions(ctx context.Context, userID string) ([]models.Permission, error)
	AssignRoles(ctx context.Context, userID string, roleIDs []string) error
}

type GRPCServer struct {
	address  string
	sessions Sessions
	authn    Authenticator
	accounts Accounts
	logger   logging.Logger
}

func NewGRPCServer(address string, l logging.Logger, sessions Sessions, authn Authenticator, accounts Accounts) *GRPCServer {
	return &GRPCServer{
		address:  address,
		logger:   l.With("module", "grpc_server"),
		sessions: sessions,
		authn:    authn,
		accounts: accounts,
	}
}

// NewServer builds a grpc.Server with the service and its interceptors
// registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.requestIDInterceptor, s.authInterceptor))
	srv := grpc.NewServer(opts...)
	RegisterAuthServiceServer(srv, s)
	return srv
}

// Run serves until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
