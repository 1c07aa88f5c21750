package auth

import (
	"time"

	"github.com/frahmantamala/clinic-management/internal/user"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access-token claims contract. Downstream services consume
// only the actor id (sub), org_id and permissions from a verified token.
type Claims struct {
	OrgID       string   `json:"org_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Name        string   `json:"name"`
	jwt.RegisteredClaims
}

// RefreshToken is one opaque session token. Only the sha256 hash of the raw
// value is ever stored; rows are mutated exactly once, to set revoked_at
// and replaced_by, forming a rotation chain.
type RefreshToken struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	UserID     string     `json:"user_id" gorm:"column:user_id;index;not null"`
	TokenHash  string     `json:"-" gorm:"column:token_hash;uniqueIndex;not null"`
	ExpiresAt  time.Time  `json:"expires_at" gorm:"column:expires_at;index;not null"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" gorm:"column:revoked_at"`
	ReplacedBy *string    `json:"replaced_by,omitempty" gorm:"column:replaced_by"`
	IPAddress  string     `json:"ip_address" gorm:"column:ip_address"`
	UserAgent  string     `json:"user_agent" gorm:"column:user_agent"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// AuthUser is the user view returned by login, refresh and me.
type AuthUser struct {
	ID          string   `json:"id"`
	OrgID       string   `json:"orgId"`
	FullName    string   `json:"fullName"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Status      string   `json:"status"`
	RoleIDs     []string `json:"roleIds"`
	RoleCodes   []string `json:"roleCodes"`
	Permissions []string `json:"permissions"`
}

func NewAuthUser(u *user.User, permissions []string) *AuthUser {
	return &AuthUser{
		ID:          u.ID,
		OrgID:       u.OrgID,
		FullName:    u.FullName,
		Email:       u.Email,
		Phone:       u.Phone,
		Status:      u.Status,
		RoleIDs:     u.RoleIDs,
		RoleCodes:   u.RoleCodes,
		Permissions: permissions,
	}
}

// CredentialStore is what the orchestrator needs from user persistence.
type CredentialStore interface {
	FindByIdentifier(identifier string) (*user.User, error)
	GetByID(id string) (*user.User, error)
	UpdatePassword(id, passwordHash string) error
}

// PermissionResolver recomputes the effective permission set from the
// database; tokens never carry permissions copied from a prior token.
type PermissionResolver interface {
	ResolvePermissionCodes(userID string) ([]string, error)
}

type TokenIssuer interface {
	CreateAccessToken(u *user.User, permissions []string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	AccessTokenTTLSeconds() int64
}

type RefreshTokenRepository interface {
	Create(t *RefreshToken) error
	FindByHash(hash string) (*RefreshToken, error)
	// MarkRevoked and MarkRotated are conditional updates guarded by
	// revoked_at IS NULL; they report whether this caller won the
	// transition. Exactly one concurrent caller can.
	MarkRevoked(id string, now time.Time) (bool, error)
	MarkRotated(id, replacedBy string, now time.Time) (bool, error)
}
