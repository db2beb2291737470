package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tokenauth/internal/common"
	"github.com/dmitrijs2005/tokenauth/internal/server/auth"
	"github.com/dmitrijs2005/tokenauth/internal/server/authz"
)

// Authenticator turns a presented access token into a Principal.
type Authenticator struct {
	users UserStore
	codec *auth.Codec
}

func NewAuthenticator(users UserStore, codec *auth.Codec) *Authenticator {
	return &Authenticator{users: users, codec: codec}
}

// Authenticate decodes accessToken and re-reads the account it names.
// Roles and permissions come from the token as-is; only the identity is
// fetched. Returns common.ErrUnauthorized for a bad token or unknown
// subject and common.ErrAccountDisabled for an inactive or suspended
// account.
func (a *Authenticator) Authenticate(ctx context.Context, accessToken string) (*authz.Principal, error) {
	cred, err := a.codec.Decode(accessToken, auth.KindAccess)
	if err != nil {
		return nil, common.ErrUnauthorized
	}

	user, err := a.users.GetUserByID(ctx, cred.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	if !user.Usable() {
		return nil, common.ErrAccountDisabled
	}

	return &authz.Principal{
		Identity: authz.IdentityFromUser(user),
		Snapshot: *cred.Snapshot,
	}, nil
}
