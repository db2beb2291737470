package grpc

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tokenauth/internal/common"
	"github.com/dmitrijs2005/tokenauth/internal/server/authz"
	"github.com/dmitrijs2005/tokenauth/internal/server/models"
	"github.com/dmitrijs2005/tokenauth/internal/server/services"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email := stringField(req, "email")
	password := stringField(req, "password")
	if email == "" || password == "" {
		return nil, s.toStatus(ctx, fmt.Errorf("%w: email and password are required", common.ErrorValidation))
	}

	pair, err := s.sessions.Login(ctx, email, password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return tokenPairStruct(pair)
}

func (s *GRPCServer) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pair, err := s.sessions.Refresh(ctx, stringField(req, "refresh_token"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return tokenPairStruct(pair)
}

func (s *GRPCServer) Me(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, ok := authz.PrincipalFromContext(ctx)
	if !ok {
		return nil, s.toStatus(ctx, common.ErrUnauthorized)
	}

	perms := make([]any, 0, len(p.Snapshot.Permissions))
	for _, c := range p.Snapshot.Permissions {
		perms = append(perms, map[string]any{"resource": c.Resource, "action": c.Action})
	}
	roles := make([]any, 0, len(p.Snapshot.Roles))
	for _, r := range p.Snapshot.Roles {
		roles = append(roles, r)
	}

	return structpb.NewStruct(map[string]any{
		"id":           p.Identity.ID,
		"email":        p.Identity.Email,
		"status":       string(p.Identity.Status),
		"is_superuser": p.IsSuperuser(),
		"roles":        roles,
		"permissions":  perms,
	})
}

// UserPermissions returns the current permissions of user_id. Callers may
// read their own; reading others needs user:read.
func (s *GRPCServer) UserPermissions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, ok := authz.PrincipalFromContext(ctx)
	if !ok {
		return nil, s.toStatus(ctx, common.ErrUnauthorized)
	}
	userID := stringField(req, "user_id")
	if err := authz.Evaluate(p, authz.UserReadOrSelf(userID)); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	perms, err := s.accounts.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return permissionsStruct(userID, perms)
}

func (s *GRPCServer) AssignRoles(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID := stringField(req, "user_id")
	if userID == "" {
		return nil, s.toStatus(ctx, fmt.Errorf("%w: user_id is required", common.ErrorValidation))
	}

	var roleIDs []string
	for _, v := range req.GetFields()["role_ids"].GetListValue().GetValues() {
		if id := v.GetStringValue(); id != "" {
			roleIDs = append(roleIDs, id)
		}
	}

	if err := s.accounts.AssignRoles(ctx, userID, roleIDs); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	s.logger.Info(ctx, "roles assigned", "user_id", userID, "request_id", common.RequestIDFromContext(ctx))
	return structpb.NewStruct(map[string]any{"user_id": userID, "role_count": len(roleIDs)})
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func tokenPairStruct(pair *services.TokenPair) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    pair.TokenType,
		"expires_in":    pair.ExpiresIn.Seconds(),
	})
}

func permissionsStruct(userID string, perms []models.Permission) (*structpb.Struct, error) {
	list := make([]any, 0, len(perms))
	for _, p := range perms {
		list = append(list, map[string]any{
			"name":     p.Name,
			"resource": p.Resource,
			"action":   p.Action,
		})
	}
	return structpb.NewStruct(map[string]any{"user_id": userID, "permissions": list})
}
