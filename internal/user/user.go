package user

import (
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"

	// ManageAuthority guards user administration.
	ManageAuthority = "users.manage"
)

// User is a credential-store record. RoleIDs and RoleCodes always reference
// the same role set; updates that would break that invariant are rejected.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	OrgID        string    `json:"org_id" gorm:"column:org_id;index;not null"`
	FullName     string    `json:"full_name" gorm:"column:full_name;not null"`
	Email        string    `json:"email" gorm:"column:email;not null"`
	Phone        string    `json:"phone" gorm:"column:phone"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null"`
	Status       string    `json:"status" gorm:"column:status;not null;default:active"`
	RoleIDs      []string  `json:"role_ids" gorm:"column:role_ids;serializer:json"`
	RoleCodes    []string  `json:"role_codes" gorm:"column:role_codes;serializer:json"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

type Repository interface {
	Create(u *User) error
	Update(u *User) error
	GetByID(id string) (*User, error)
	// FindByIdentifier matches email case-insensitively or phone exactly.
	FindByIdentifier(identifier string) (*User, error)
	ExistsByEmailOrPhone(orgID, email, phone, excludeID string) (bool, error)
	List(orgScope *string, limit, offset int) ([]*User, error)
	UpdatePassword(id, passwordHash string) error
	// UserIDsForOrg supports tenant-scoped audit listing.
	UserIDsForOrg(orgID string) ([]string, error)
}
