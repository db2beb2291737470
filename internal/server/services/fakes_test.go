package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenauth/internal/common"
	"github.com/dmitrijs2005/tokenauth/internal/dbx"
	"github.com/dmitrijs2005/tokenauth/internal/server/auth"
	"github.com/dmitrijs2005/tokenauth/internal/server/config"
	"github.com/dmitrijs2005/tokenauth/internal/server/models"
	rolesrepo "github.com/dmitrijs2005/tokenauth/internal/server/repositories/roles"
	usersrepo "github.com/dmitrijs2005/tokenauth/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

// --- users ---

type fakeUsersRepo struct {
	byID      map[string]*models.User
	getErr    error
	createErr error
	updateErr error
	seq       int
}

func newFakeUsers(users ...*models.User) *fakeUsersRepo {
	f := &fakeUsersRepo{byID: map[string]*models.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.seq++
	cp := *u
	cp.ID = fmt.Sprintf("u-new-%d", f.seq)
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.byID[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeUsersRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) UpdateStatus(_ context.Context, id string, isActive bool, status models.UserStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.IsActive = isActive
	u.Status = status
	return nil
}

func (f *fakeUsersRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

// --- roles ---

type fakeRolesRepo struct {
	roles       map[string]models.Role
	rolePerms   map[string][]models.Permission
	assignments map[string][]string
	catalog     map[string]models.Permission
	seq         int

	rolesErr   error
	permsErr   error
	replaceErr error

	rolesCalls int
	permsCalls int
}

func newFakeRoles() *fakeRolesRepo {
	return &fakeRolesRepo{
		roles:       map[string]models.Role{},
		rolePerms:   map[string][]models.Permission{},
		assignments: map[string][]string{},
		catalog:     map[string]models.Permission{},
	}
}

func (f *fakeRolesRepo) addRole(id, name string, active bool, perms ...string) {
	f.roles[id] = models.Role{ID: id, Name: name, IsActive: active}
	for _, p := range perms {
		resource, action, _ := strings.Cut(p, ":")
		perm := models.Permission{ID: p, Name: p, Resource: resource, Action: action}
		f.rolePerms[id] = append(f.rolePerms[id], perm)
		f.catalog[p] = perm
	}
}

func (f *fakeRolesRepo) assign(userID string, roleIDs ...string) {
	f.assignments[userID] = roleIDs
}

func (f *fakeRolesRepo) RolesForUser(_ context.Context, userID string) ([]models.Role, error) {
	f.rolesCalls++
	if f.rolesErr != nil {
		return nil, f.rolesErr
	}
	var out []models.Role
	for _, id := range f.assignments[userID] {
		if r, ok := f.roles[id]; ok && r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRolesRepo) PermissionsForRoles(_ context.Context, roleIDs []string) ([]models.Permission, error) {
	f.permsCalls++
	if f.permsErr != nil {
		return nil, f.permsErr
	}
	var out []models.Permission
	for _, id := range roleIDs {
		out = append(out, f.rolePerms[id]...)
	}
	return out, nil
}

func (f *fakeRolesRepo) ReplaceUserRoles(_ context.Context, userID string, roleIDs []string) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.assignments[userID] = roleIDs
	return nil
}

func (f *fakeRolesRepo) ListRoles(context.Context) ([]models.Role, error) {
	if f.rolesErr != nil {
		return nil, f.rolesErr
	}
	out := make([]models.Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRolesRepo) GetRole(_ context.Context, id string) (*models.Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &r, nil
}

func (f *fakeRolesRepo) CreateRole(_ context.Context, role *models.Role) (*models.Role, error) {
	for _, r := range f.roles {
		if r.Name == role.Name {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.seq++
	cp := *role
	cp.ID = fmt.Sprintf("r-new-%d", f.seq)
	f.roles[cp.ID] = cp
	return &cp, nil
}

func (f *fakeRolesRepo) DeleteRole(_ context.Context, id string) error {
	if _, ok := f.roles[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.roles, id)
	delete(f.rolePerms, id)
	return nil
}

func (f *fakeRolesRepo) ReplaceRolePermissions(_ context.Context, roleID string, permissionIDs []string) error {
	perms := make([]models.Permission, 0, len(permissionIDs))
	for _, id := range permissionIDs {
		p, ok := f.catalog[id]
		if !ok {
			return fmt.Errorf("%w: unknown permission %q", common.ErrorValidation, id)
		}
		perms = append(perms, p)
	}
	f.rolePerms[roleID] = perms
	return nil
}

func (f *fakeRolesRepo) ListPermissions(context.Context) ([]models.Permission, error) {
	out := make([]models.Permission, 0, len(f.catalog))
	for _, p := range f.catalog {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRolesRepo) CreatePermission(_ context.Context, p *models.Permission) (*models.Permission, error) {
	if _, ok := f.catalog[p.Name]; ok {
		return nil, common.ErrorAlreadyExists
	}
	cp := *p
	cp.ID = p.Name
	f.catalog[cp.ID] = cp
	return &cp, nil
}

func (f *fakeRolesRepo) DeletePermission(_ context.Context, id string) error {
	if _, ok := f.catalog[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.catalog, id)
	return nil
}

// --- repo manager ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRolesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return m.u }
func (m *fakeRepoManager) Roles(dbx.DBTX) rolesrepo.Repository          { return m.r }

// --- hasher ---

type fakeHasher struct {
	verifyCalls int
	hashErr     error
}

func (h *fakeHasher) Hash(plain string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + plain, nil
}

func (h *fakeHasher) Verify(plain, hash string) bool {
	h.verifyCalls++
	return hash == "hashed:"+plain
}

// --- shared fixtures ---

const testSecret = "test-secret"

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    testSecret,
		AccessTokenValidityDuration:  30 * time.Minute,
		RefreshTokenValidityDuration: 7 * 24 * time.Hour,
	}
}

func newTestCodec(t *testing.T) *auth.Codec {
	t.Helper()
	c, err := auth.NewCodec([]byte(testSecret))
	require.NoError(t, err)
	return c
}

func activeUser(id, email, password string) *models.User {
	return &models.User{
		ID:           id,
		Email:        email,
		PasswordHash: "hashed:" + password,
		IsActive:     true,
		Status:       models.UserStatusActive,
	}
}
