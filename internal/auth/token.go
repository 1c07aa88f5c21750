package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/clinic-management/internal"
	"github.com/frahmantamala/clinic-management/internal/user"
	"github.com/golang-jwt/jwt/v5"
)

// JWTTokenIssuer signs short-lived access tokens with a symmetric HMAC key.
type JWTTokenIssuer struct {
	Secret         []byte
	Issuer         string
	AccessTokenTTL time.Duration
}

func NewJWTTokenIssuer(secret, issuer string, accessTTL time.Duration) *JWTTokenIssuer {
	return &JWTTokenIssuer{
		Secret:         []byte(secret),
		Issuer:         issuer,
		AccessTokenTTL: accessTTL,
	}
}

// CreateAccessToken signs a token for the user. The permission list must be
// resolved fresh at issuance time; callers never pass codes copied from a
// previous token.
func (j *JWTTokenIssuer) CreateAccessToken(u *user.User, permissions []string) (string, error) {
	now := time.Now()

	claims := &Claims{
		OrgID:       u.OrgID,
		Roles:       u.RoleCodes,
		Permissions: permissions,
		Name:        u.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.Issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.AccessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

func (j *JWTTokenIssuer) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, internal.ErrInvalidToken
}

// AccessTokenTTLSeconds is exposed so the orchestrator can report expiresIn.
func (j *JWTTokenIssuer) AccessTokenTTLSeconds() int64 {
	return int64(j.AccessTokenTTL.Seconds())
}
