// Package httpapi exposes registration, sessions and permission
// introspection as a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tokenauth/internal/logging"
	"github.com/dmitrijs2005/tokenauth/internal/server/authz"
	"github.com/dmitrijs2005/tokenauth/internal/server/models"
	"github.com/dmitrijs2005/tokenauth/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
)

type Sessions interface {
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*authz.Principal, error)
}

type Accounts interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
	EffectivePermissions(ctx context.Context, userID string) ([]models.Permission, error)
	CheckPermission(ctx context.Context, userID, resource, action string) (bool, error)
	AssignRoles(ctx context.Context, userID string, roleIDs []string) error
	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	Suspend(ctx context.Context, id string) error
}

// Catalog manages roles and permissions.
type Catalog interface {
	ListRoles(ctx context.Context) ([]models.Role, error)
	GetRole(ctx context.Context, id string) (*models.Role, error)
	CreateRole(ctx context.Context, name, description string) (*models.Role, error)
	DeleteRole(ctx context.Context, id string) error
	RolePermissions(ctx context.Context, roleID string) ([]models.Permission, error)
	SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error
	ListPermissions(ctx context.Context) ([]models.Permission, error)
	CreatePermission(ctx context.Context, resource, action, description string) (*models.Permission, error)
	DeletePermission(ctx context.Context, id string) error
}

const shutdownTimeout = 10 * time.Second

type HTTPServer struct {
	address        string
	sessions       Sessions
	authn          Authenticator
	accounts       Accounts
	catalog        Catalog
	logger         logging.Logger
	validate       *validator.Validate
	loginRateLimit int
}

// NewHTTPServer builds the API server. loginRateLimit is the number of
// login attempts allowed per client IP per minute; zero disables the limit.
func NewHTTPServer(address string, l logging.Logger, sessions Sessions, authn Authenticator, accounts Accounts, catalog Catalog, loginRateLimit int) *HTTPServer {
	return &HTTPServer{
		address:        address,
		sessions:       sessions,
		authn:          authn,
		accounts:       accounts,
		catalog:        catalog,
		logger:         l.With("module", "http_server"),
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		loginRateLimit: loginRateLimit,
	}
}

// Routes returns the router with all endpoints mounted. RemoteAddr is
// the socket peer: forwarding headers are not trusted, so the login limit
// cannot be dodged by rotating them.
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.register)
		r.With(s.loginLimiter()...).Post("/login", s.login)
		r.Post("/refresh", s.refresh)
		r.With(s.authenticate).Get("/me", s.me)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(s.authenticate)
		r.With(s.require(authz.UserCreate)).Post("/", s.createUser)

		r.Route("/{id}", func(r chi.Router) {
			self := s.requireFor(func(r *http.Request) authz.Requirement {
				return authz.UserReadOrSelf(chi.URLParam(r, "id"))
			})
			r.With(self).Get("/", s.getUser)
			r.With(s.require(authz.UserDelete)).Delete("/", s.deleteUser)
			r.With(self).Get("/permissions", s.userPermissions)
			r.With(self).Get("/check-permission", s.checkPermission)
			r.With(s.require(authz.AssignRoles)).Put("/roles", s.assignRoles)
			r.With(s.require(authz.UserUpdate)).Put("/status", s.setStatus)
		})
	})

	r.Route("/roles", func(r chi.Router) {
		r.Use(s.authenticate)
		r.With(s.require(authz.RoleRead)).Get("/", s.listRoles)
		r.With(s.require(authz.RoleCreate)).Post("/", s.createRole)
		r.With(s.require(authz.RoleRead)).Get("/{id}", s.getRole)
		r.With(s.require(authz.RoleDelete)).Delete("/{id}", s.deleteRole)
		r.With(s.require(authz.RoleRead)).Get("/{id}/permissions", s.rolePermissions)
		r.With(s.require(authz.RoleUpdate)).Put("/{id}/permissions", s.setRolePermissions)
	})

	r.Route("/permissions", func(r chi.Router) {
		r.Use(s.authenticate)
		r.With(s.require(authz.PermissionRead)).Get("/", s.listPermissions)
		r.With(s.require(authz.PermissionCreate)).Post("/", s.createPermission)
		r.With(s.require(authz.PermissionDelete)).Delete("/{id}", s.deletePermission)
	})

	return r
}

func (s *HTTPServer) loginLimiter() []func(http.Handler) http.Handler {
	if s.loginRateLimit <= 0 {
		return nil
	}
	return []func(http.Handler) http.Handler{
		// KeyByIP reads RemoteAddr only.
		httprate.Limit(s.loginRateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeDetail(w, http.StatusTooManyRequests, "too many login attempts")
			}),
		),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *HTTPServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())
		errCh <- srv.Serve(listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
