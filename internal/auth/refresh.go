package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/frahmantamala/clinic-management/internal"
	"github.com/google/uuid"
)

const rawTokenBytes = 32

// HashToken is the one-way digest stored in place of the raw token. The raw
// value exists only in memory and in the response that carried it.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateRawToken() (string, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// RefreshTokenService owns the opaque session-token lifecycle:
// issued -> rotated | revoked | expired, all terminal.
type RefreshTokenService struct {
	repo RefreshTokenRepository
	ttl  time.Duration
}

func NewRefreshTokenService(repo RefreshTokenRepository, ttl time.Duration) *RefreshTokenService {
	return &RefreshTokenService{repo: repo, ttl: ttl}
}

// Issue creates a fresh token for the user and returns the raw value.
func (s *RefreshTokenService) Issue(userID, ipAddress, userAgent string) (string, *RefreshToken, error) {
	raw, err := generateRawToken()
	if err != nil {
		return "", nil, internal.NewInternalError("failed to generate refresh token", err)
	}

	token := &RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: HashToken(raw),
		ExpiresAt: time.Now().Add(s.ttl),
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Create(token); err != nil {
		return "", nil, internal.NewInternalError("failed to store refresh token", err)
	}
	return raw, token, nil
}

// RequireValid resolves the raw token and fails with Unauthorized when it
// is unknown, revoked or past expiry.
func (s *RefreshTokenService) RequireValid(raw string) (*RefreshToken, error) {
	token, err := s.repo.FindByHash(HashToken(raw))
	if err != nil {
		return nil, internal.NewInternalError("failed to look up refresh token", err)
	}
	if token == nil {
		return nil, internal.ErrInvalidToken
	}
	if token.Revoked() {
		return nil, internal.ErrTokenRevoked
	}
	if token.Expired(time.Now()) {
		return nil, internal.ErrTokenExpired
	}
	return token, nil
}

// Rotate exchanges a valid token for a new one. Revoking the parent is an
// atomic conditional update, so of two concurrent rotations of the same
// token exactly one wins; the loser gets Unauthorized and its replacement
// is revoked again before anyone could have seen it.
func (s *RefreshTokenService) Rotate(raw, ipAddress, userAgent string) (string, *RefreshToken, error) {
	old, err := s.RequireValid(raw)
	if err != nil {
		return "", nil, err
	}

	newRaw, newToken, err := s.Issue(old.UserID, ipAddress, userAgent)
	if err != nil {
		return "", nil, err
	}

	won, err := s.repo.MarkRotated(old.ID, newToken.ID, time.Now())
	if err != nil {
		return "", nil, internal.NewInternalError("failed to rotate refresh token", err)
	}
	if !won {
		// A concurrent rotation got there first; withdraw our replacement.
		_, _ = s.repo.MarkRevoked(newToken.ID, time.Now())
		return "", nil, internal.ErrTokenRevoked
	}

	return newRaw, newToken, nil
}

// Revoke terminates exactly one token without chaining a replacement.
func (s *RefreshTokenService) Revoke(raw string) (*RefreshToken, error) {
	token, err := s.RequireValid(raw)
	if err != nil {
		return nil, err
	}

	won, err := s.repo.MarkRevoked(token.ID, time.Now())
	if err != nil {
		return nil, internal.NewInternalError("failed to revoke refresh token", err)
	}
	if !won {
		return nil, internal.ErrTokenRevoked
	}
	return token, nil
}
