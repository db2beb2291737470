package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenauth/internal/common"
	"github.com/dmitrijs2005/tokenauth/internal/server/authz"
	"github.com/dmitrijs2005/tokenauth/internal/server/models"
	"github.com/dmitrijs2005/tokenauth/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type assignRolesRequest struct {
	RoleIDs []string `json:"role_ids" validate:"dive,required"`
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type createPermissionRequest struct {
	Resource    string `json:"resource" validate:"required,max=100"`
	Action      string `json:"action" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type rolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" validate:"dive,required"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive suspended"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type permissionResponse struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

type meResponse struct {
	ID          string               `json:"id"`
	Email       string               `json:"email"`
	Status      string               `json:"status"`
	IsSuperuser bool                 `json:"is_superuser"`
	Roles       []string             `json:"roles"`
	Permissions []permissionResponse `json:"permissions"`
}

type roleResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type checkPermissionResponse struct {
	UserID        string `json:"user_id"`
	Resource      string `json:"resource"`
	Action        string `json:"action"`
	HasPermission bool   `json:"has_permission"`
}

type userPermissionsResponse struct {
	UserID      string               `json:"user_id"`
	Permissions []permissionResponse `json:"permissions"`
}

// decode reads a JSON body into dst and validates it. Failures are
// reported as common.ErrorValidation.
func (s *HTTPServer) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrorValidation)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", common.ErrorValidation, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return nil
}

func (s *HTTPServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.accounts.Register(r.Context(), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// createUser lets an administrator open an account on someone's behalf.
func (s *HTTPServer) createUser(w http.ResponseWriter, r *http.Request) {
	s.register(w, r)
}

func (s *HTTPServer) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.accounts.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *HTTPServer) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	pair, err := s.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (s *HTTPServer) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	pair, err := s.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (s *HTTPServer) me(w http.ResponseWriter, r *http.Request) {
	p, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, r, common.ErrUnauthorized)
		return
	}

	perms := make([]permissionResponse, 0, len(p.Snapshot.Permissions))
	for _, c := range p.Snapshot.Permissions {
		perms = append(perms, permissionResponse{Resource: c.Resource, Action: c.Action})
	}
	roles := p.Snapshot.Roles
	if roles == nil {
		roles = []string{}
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:          p.Identity.ID,
		Email:       p.Identity.Email,
		Status:      string(p.Identity.Status),
		IsSuperuser: p.IsSuperuser(),
		Roles:       roles,
		Permissions: perms,
	})
}

func (s *HTTPServer) userPermissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	perms, err := s.accounts.EffectivePermissions(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userPermissionsResponse{UserID: userID, Permissions: toPermissionResponses(perms)})
}

// checkPermission answers from the store, not from any token snapshot.
func (s *HTTPServer) checkPermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	resource := strings.TrimSpace(r.URL.Query().Get("resource"))
	action := strings.TrimSpace(r.URL.Query().Get("action"))
	if resource == "" || action == "" {
		s.writeError(w, r, fmt.Errorf("%w: resource and action query parameters are required", common.ErrorValidation))
		return
	}

	ok, err := s.accounts.CheckPermission(r.Context(), userID, resource, action)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkPermissionResponse{UserID: userID, Resource: resource, Action: action, HasPermission: ok})
}

func (s *HTTPServer) assignRoles(w http.ResponseWriter, r *http.Request) {
	var req assignRolesRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	userID := chi.URLParam(r, "id")
	if err := s.accounts.AssignRoles(r.Context(), userID, req.RoleIDs); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	userID := chi.URLParam(r, "id")
	var err error
	switch models.UserStatus(req.Status) {
	case models.UserStatusActive:
		err = s.accounts.Activate(r.Context(), userID)
	case models.UserStatusInactive:
		err = s.accounts.Deactivate(r.Context(), userID)
	case models.UserStatusSuspended:
		err = s.accounts.Suspend(r.Context(), userID)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.catalog.ListRoles(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := make([]roleResponse, 0, len(roles))
	for i := range roles {
		resp = append(resp, toRoleResponse(&roles[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	role, err := s.catalog.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRoleResponse(role))
}

func (s *HTTPServer) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := s.catalog.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponse(role))
}

func (s *HTTPServer) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteRole(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) rolePermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := s.catalog.RolePermissions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPermissionResponses(perms))
}

func (s *HTTPServer) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	var req rolePermissionsRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.catalog.SetRolePermissions(r.Context(), chi.URLParam(r, "id"), req.PermissionIDs); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := s.catalog.ListPermissions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPermissionResponses(perms))
}

func (s *HTTPServer) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.catalog.CreatePermission(r.Context(), req.Resource, req.Action, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, permissionResponse{ID: p.ID, Name: p.Name, Resource: p.Resource, Action: p.Action})
}

func (s *HTTPServer) deletePermission(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeletePermission(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toTokenResponse(pair *services.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int64(pair.ExpiresIn / time.Second),
	}
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		Status:      string(u.Status),
		CreatedAt:   u.CreatedAt,
	}
}

func toRoleResponse(r *models.Role) roleResponse {
	return roleResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
	}
}

func toPermissionResponses(perms []models.Permission) []permissionResponse {
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionResponse{ID: p.ID, Name: p.Name, Resource: p.Resource, Action: p.Action})
	}
	return out
}
