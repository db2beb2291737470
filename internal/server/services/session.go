package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenauth/internal/common"
	"github.com/dmitrijs2005/tokenauth/internal/logging"
	"github.com/dmitrijs2005/tokenauth/internal/server/auth"
	"github.com/dmitrijs2005/tokenauth/internal/server/config"
	"github.com/dmitrijs2005/tokenauth/internal/server/models"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	// ExpiresIn is the access token lifetime.
	ExpiresIn time.Duration
}

// SessionService logs users in and refreshes their token pairs.
//
// Refresh tokens are stateless: a used refresh token stays valid until it
// expires, and password changes do not invalidate outstanding ones.
type SessionService struct {
	users     UserStore
	snapshots *SnapshotBuilder
	hasher    PasswordHasher
	codec     *auth.Codec
	logger    logging.Logger

	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration

	// dummyHash is compared against when the account cannot log in, so the
	// response time does not reveal whether the email exists.
	dummyHash string
}

// NewSessionService wires a SessionService. It hashes a throwaway password
// once, which costs one bcrypt round at startup.
func NewSessionService(users UserStore, roles RoleStore, hasher PasswordHasher, codec *auth.Codec, cfg *config.Config, logger logging.Logger) (*SessionService, error) {
	seed, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("error generating dummy password: %w", err)
	}
	dummy, err := hasher.Hash(seed)
	if err != nil {
		return nil, fmt.Errorf("error hashing dummy password: %w", err)
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &SessionService{
		users:                        users,
		snapshots:                    NewSnapshotBuilder(roles),
		hasher:                       hasher,
		codec:                        codec,
		logger:                       logger.With("module", "sessions"),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		dummyHash:                    dummy,
	}, nil
}

// Login verifies email and password and returns a new TokenPair. Unknown
// email, disabled account and wrong password all yield
// common.ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	if !user.Usable() {
		s.hasher.Verify(password, s.dummyHash)
		s.logger.Info(ctx, "login rejected for disabled account", "user_id", user.ID, "status", user.Status)
		return nil, common.ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	pair, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair, rebuilding the
// authorization snapshot from the store. Any problem with the token or the
// account it names yields common.ErrInvalidToken.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	cred, err := s.codec.Decode(refreshToken, auth.KindRefresh)
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, cred.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	if !user.Usable() {
		return nil, common.ErrInvalidToken
	}

	return s.generateTokenPair(ctx, user)
}

func (s *SessionService) generateTokenPair(ctx context.Context, user *models.User) (*TokenPair, error) {
	snap, err := s.snapshots.Build(ctx, user.ID, user.IsSuperuser)
	if err != nil {
		return nil, err
	}

	access, err := s.codec.Issue(user.ID, auth.KindAccess, snap, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("error issuing access token: %w", err)
	}
	refresh, err := s.codec.Issue(user.ID, auth.KindRefresh, nil, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("error issuing refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    s.accessTokenValidityDuration,
	}, nil
}

// NormalizeEmail trims and lower-cases an address so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
