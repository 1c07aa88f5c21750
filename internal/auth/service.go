package auth

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/clinic-management/internal"
	"github.com/frahmantamala/clinic-management/internal/audit"
	"golang.org/x/crypto/bcrypt"
)

// Service orchestrates login, refresh, logout, me and change-password on
// top of the credential store, the permission resolver, the token issuer
// and the refresh-token service.
type Service struct {
	users      CredentialStore
	resolver   PermissionResolver
	tokens     TokenIssuer
	refresh    *RefreshTokenService
	auditor    audit.Recorder
	bcryptCost int
	logger     *slog.Logger
}

func NewService(users CredentialStore, resolver PermissionResolver, tokens TokenIssuer, refresh *RefreshTokenService, auditor audit.Recorder, bcryptCost int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:      users,
		resolver:   resolver,
		tokens:     tokens,
		refresh:    refresh,
		auditor:    auditor,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Login authenticates by email or phone. Unknown identifier and wrong
// password return the same Unauthorized error so callers cannot enumerate
// users; an inactive account is Forbidden and issues nothing.
func (s *Service) Login(dto LoginDTO, ipAddress, userAgent string) (*AuthResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.users.FindByIdentifier(dto.Identifier)
	if err != nil {
		return nil, internal.NewInternalError("failed to look up user", err)
	}
	if u == nil {
		return nil, internal.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(dto.Password)); err != nil {
		return nil, internal.ErrInvalidCredentials
	}

	if !u.IsActive() {
		return nil, internal.ErrUserInactive
	}

	return s.issueSession(u.ID, ipAddress, userAgent, "login")
}

// Refresh rotates the refresh token and issues a new access token with
// permissions re-resolved from the database, so role changes take effect on
// the next refresh without waiting for access-token expiry.
func (s *Service) Refresh(rawRefreshToken, ipAddress, userAgent string) (*AuthResponse, error) {
	old, err := s.refresh.RequireValid(rawRefreshToken)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(old.UserID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load user", err)
	}
	if u == nil {
		return nil, internal.ErrInvalidToken
	}
	if !u.IsActive() {
		return nil, internal.ErrUserInactive
	}

	permissions, err := s.resolver.ResolvePermissionCodes(u.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to resolve permissions", err)
	}

	newRaw, newToken, err := s.refresh.Rotate(rawRefreshToken, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.tokens.CreateAccessToken(u, permissions)
	if err != nil {
		return nil, internal.NewInternalError("failed to sign access token", err)
	}

	if err := s.auditor.Record(u.ID, "rotate", "refresh_tokens", map[string]interface{}{
		"id":       newToken.ID,
		"replaced": old.ID,
	}, ipAddress, userAgent); err != nil {
		return nil, err
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: newRaw,
		TokenType:    "Bearer",
		ExpiresIn:    s.tokens.AccessTokenTTLSeconds(),
		User:         NewAuthUser(u, permissions),
	}, nil
}

// Logout revokes exactly the presented refresh token; other sessions of the
// same user stay untouched.
func (s *Service) Logout(rawRefreshToken, ipAddress, userAgent string) error {
	token, err := s.refresh.Revoke(rawRefreshToken)
	if err != nil {
		return err
	}

	return s.auditor.Record(token.UserID, "logout", "sessions", map[string]interface{}{
		"id": token.ID,
	}, ipAddress, userAgent)
}

// Me returns the profile with a freshly resolved permission set; nothing is
// read back out of the presented token.
func (s *Service) Me(userID string) (*AuthUser, error) {
	u, err := s.users.GetByID(userID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load user", err)
	}
	if u == nil {
		return nil, internal.ErrUserNotFound
	}

	permissions, err := s.resolver.ResolvePermissionCodes(u.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to resolve permissions", err)
	}
	return NewAuthUser(u, permissions), nil
}

func (s *Service) ChangePassword(ctx context.Context, dto ChangePasswordDTO) error {
	actor, err := internal.RequireActor(ctx)
	if err != nil {
		return err
	}
	if err := dto.Validate(); err != nil {
		return err
	}

	u, err := s.users.GetByID(actor.UserID)
	if err != nil {
		return internal.NewInternalError("failed to load user", err)
	}
	if u == nil {
		return internal.ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(dto.CurrentPassword)); err != nil {
		return internal.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.NewPassword), s.bcryptCost)
	if err != nil {
		return internal.NewInternalError("failed to hash password", err)
	}

	if err := s.users.UpdatePassword(u.ID, string(hash)); err != nil {
		return internal.NewInternalError("failed to update password", err)
	}

	return s.auditor.Record(actor.UserID, "change_password", "users", map[string]interface{}{
		"id": u.ID,
	}, actor.IPAddress, actor.UserAgent)
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokens.ValidateToken(tokenString)
}

// issueSession builds the full login response: fresh permissions, signed
// access token and a new refresh token, with a first-class audit entry for
// the session creation.
func (s *Service) issueSession(userID, ipAddress, userAgent, auditAction string) (*AuthResponse, error) {
	u, err := s.users.GetByID(userID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load user", err)
	}
	if u == nil {
		return nil, internal.ErrUserNotFound
	}

	permissions, err := s.resolver.ResolvePermissionCodes(u.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to resolve permissions", err)
	}

	accessToken, err := s.tokens.CreateAccessToken(u, permissions)
	if err != nil {
		return nil, internal.NewInternalError("failed to sign access token", err)
	}

	rawRefresh, refreshToken, err := s.refresh.Issue(u.ID, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	if err := s.auditor.Record(u.ID, auditAction, "sessions", map[string]interface{}{
		"id": refreshToken.ID,
	}, ipAddress, userAgent); err != nil {
		return nil, err
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.tokens.AccessTokenTTLSeconds(),
		User:         NewAuthUser(u, permissions),
	}, nil
}
