package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenauth/internal/common"
	"github.com/dmitrijs2005/tokenauth/internal/logging"
	"github.com/dmitrijs2005/tokenauth/internal/server/auth"
	"github.com/dmitrijs2005/tokenauth/internal/server/authz"
	"github.com/dmitrijs2005/tokenauth/internal/server/models"
	"github.com/dmitrijs2005/tokenauth/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// ---- fakes ----

type fakeSessions struct {
	pair     *services.TokenPair
	err      error
	gotEmail string
	gotToken string
}

func (f *fakeSessions) Login(_ context.Context, email, _ string) (*services.TokenPair, error) {
	f.gotEmail = email
	return f.pair, f.err
}

func (f *fakeSessions) Refresh(_ context.Context, token string) (*services.TokenPair, error) {
	f.gotToken = token
	return f.pair, f.err
}

type fakeAuthn struct {
	principals map[string]*authz.Principal
	err        error
}

func (f *fakeAuthn) Authenticate(_ context.Context, token string) (*authz.Principal, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.principals[token]
	if !ok {
		return nil, common.ErrUnauthorized
	}
	return p, nil
}

type fakeAccounts struct {
	perms       []models.Permission
	err         error
	assignedFor string
	assigned    []string
}

func (f *fakeAccounts) EffectivePermissions(context.Context, string) ([]models.Permission, error) {
	return f.perms, f.err
}

func (f *fakeAccounts) AssignRoles(_ context.Context, userID string, roleIDs []string) error {
	f.assignedFor = userID
	f.assigned = roleIDs
	return f.err
}

func principal(id string, superuser bool, perms ...authz.Permission) *authz.Principal {
	p := &authz.Principal{
		Identity: authz.Identity{ID: id, Email: id + "@example.com", IsActive: true, Status: models.UserStatusActive, IsSuperuser: superuser},
		Snapshot: auth.Snapshot{Roles: []string{}, Permissions: []auth.PermissionClaim{}},
	}
	for _, perm := range perms {
		p.Snapshot.Permissions = append(p.Snapshot.Permissions, auth.PermissionClaim{Resource: perm.Resource, Action: perm.Action})
	}
	return p
}

type harness struct {
	sessions *fakeSessions
	authn    *fakeAuthn
	accounts *fakeAccounts
	conn     *grpc.ClientConn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sessions: &fakeSessions{pair: &services.TokenPair{AccessToken: "a", RefreshToken: "r", TokenType: "bearer", ExpiresIn: 30 * time.Minute}},
		authn: &fakeAuthn{principals: map[string]*authz.Principal{
			"alice-token": principal("alice", false),
			"admin-token": principal("admin", false,
				authz.Permission{Resource: "user", Action: "update"},
				authz.Permission{Resource: "role", Action: "update"},
				authz.Permission{Resource: "user", Action: "read"}),
			"root-token": principal("root", true),
		}},
		accounts: &fakeAccounts{perms: []models.Permission{{Name: "doc:read", Resource: "doc", Action: "read"}}},
	}

	s := NewGRPCServer("", logging.NopLogger{}, h.sessions, h.authn, h.accounts)
	lis := bufconn.Listen(1 << 20)
	srv := s.NewServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	h.conn = conn
	return h
}

func (h *harness) call(t *testing.T, method, token string, in map[string]any) (*structpb.Struct, metadata.MD, error) {
	t.Helper()
	req, err := structpb.NewStruct(in)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}

	var header metadata.MD
	out := new(structpb.Struct)
	err = h.conn.Invoke(ctx, method, req, out, grpc.Header(&header))
	return out, header, err
}

// ---- tests ----

func TestLogin(t *testing.T) {
	h := newHarness(t)

	out, header, err := h.call(t, MethodLogin, "", map[string]any{"email": "alice@example.com", "password": "pw"})
	require.NoError(t, err)
	assert.Equal(t, "a", out.Fields["access_token"].GetStringValue())
	assert.Equal(t, "r", out.Fields["refresh_token"].GetStringValue())
	assert.Equal(t, "bearer", out.Fields["token_type"].GetStringValue())
	assert.Equal(t, float64(1800), out.Fields["expires_in"].GetNumberValue())
	assert.Equal(t, "alice@example.com", h.sessions.gotEmail)
	assert.NotEmpty(t, header.Get("x-request-id"))
}

func TestLogin_Errors(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.call(t, MethodLogin, "", map[string]any{"email": "alice@example.com"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	h.sessions.err = common.ErrInvalidCredentials
	_, _, err = h.call(t, MethodLogin, "", map[string]any{"email": "alice@example.com", "password": "bad"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestRefresh(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.call(t, MethodRefresh, "", map[string]any{"refresh_token": "rt"})
	require.NoError(t, err)
	assert.Equal(t, "rt", h.sessions.gotToken)

	h.sessions.err = common.ErrInvalidToken
	_, _, err = h.call(t, MethodRefresh, "", map[string]any{"refresh_token": "rt"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestMe(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.call(t, MethodMe, "admin-token", nil)
	require.NoError(t, err)
	assert.Equal(t, "admin", out.Fields["id"].GetStringValue())
	assert.False(t, out.Fields["is_superuser"].GetBoolValue())
	perms := out.Fields["permissions"].GetListValue().GetValues()
	require.Len(t, perms, 3)
	assert.Equal(t, "user", perms[0].GetStructValue().Fields["resource"].GetStringValue())
}

func TestMe_Unauthenticated(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.call(t, MethodMe, "", nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, _, err = h.call(t, MethodMe, "unknown-token", nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	h.authn.err = common.ErrAccountDisabled
	_, _, err = h.call(t, MethodMe, "alice-token", nil)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestUserPermissions_SelfOr(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.call(t, MethodUserPermissions, "alice-token", map[string]any{"user_id": "alice"})
	require.NoError(t, err)
	assert.Len(t, out.Fields["permissions"].GetListValue().GetValues(), 1)

	_, _, err = h.call(t, MethodUserPermissions, "alice-token", map[string]any{"user_id": "bob"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "read user")

	_, _, err = h.call(t, MethodUserPermissions, "admin-token", map[string]any{"user_id": "bob"})
	require.NoError(t, err)

	_, _, err = h.call(t, MethodUserPermissions, "root-token", map[string]any{"user_id": "bob"})
	require.NoError(t, err)
}

func TestAssignRoles_RequiresBothPermissions(t *testing.T) {
	h := newHarness(t)
	in := map[string]any{"user_id": "bob", "role_ids": []any{"r1", "r2"}}

	_, _, err := h.call(t, MethodAssignRoles, "alice-token", in)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Empty(t, h.accounts.assignedFor)

	out, _, err := h.call(t, MethodAssignRoles, "admin-token", in)
	require.NoError(t, err)
	assert.Equal(t, "bob", h.accounts.assignedFor)
	assert.Equal(t, []string{"r1", "r2"}, h.accounts.assigned)
	assert.Equal(t, float64(2), out.Fields["role_count"].GetNumberValue())
}

func TestAssignRoles_ErrorMapping(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.call(t, MethodAssignRoles, "root-token", map[string]any{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	h.accounts.err = common.ErrorNotFound
	_, _, err = h.call(t, MethodAssignRoles, "root-token", map[string]any{"user_id": "ghost"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newHarness(t)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-request-id", "req-42")
	req, err := structpb.NewStruct(map[string]any{"refresh_token": "rt"})
	require.NoError(t, err)

	var header metadata.MD
	require.NoError(t, h.conn.Invoke(ctx, MethodRefresh, req, new(structpb.Struct), grpc.Header(&header)))
	assert.Equal(t, []string{"req-42"}, header.Get("x-request-id"))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.NopLogger{}, &fakeSessions{}, &fakeAuthn{}, &fakeAccounts{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.NopLogger{}, &fakeSessions{}, &fakeAuthn{}, &fakeAccounts{})

	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}
