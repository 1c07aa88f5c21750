package permission

import (
	"time"
)

const (
	ScopeTenant = "tenant"
	ScopeSystem = "system"

	// SystemResource forces system scope regardless of what the caller sent.
	SystemResource = "system"

	// ManageAuthority guards every catalog mutation.
	ManageAuthority = "permissions.manage"
)

// Permission is one capability definition. Tenant-scoped rows belong to an
// organization; system-scoped rows are global and carry an empty OrgID.
type Permission struct {
	ID             string    `json:"id" gorm:"primaryKey;column:id"`
	OrgID          string    `json:"org_id" gorm:"column:org_id;index"`
	Name           string    `json:"name" gorm:"column:name;not null"`
	PermissionCode string    `json:"permission_code" gorm:"column:permission_code;not null"`
	Scope          string    `json:"scope" gorm:"column:scope;not null;default:tenant"`
	Resource       string    `json:"resource" gorm:"column:resource;not null"`
	Action         string    `json:"action" gorm:"column:action;not null"`
	Description    string    `json:"description" gorm:"column:description"`
	Active         bool      `json:"active" gorm:"column:active;default:true"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Permission) TableName() string {
	return "permissions"
}

// Code builds the canonical permission code. It is recomputed on every
// write; the client-supplied value is never trusted.
func Code(resource, action string) string {
	return resource + "." + action
}

type Repository interface {
	Create(p *Permission) error
	Update(p *Permission) error
	GetByID(id string) (*Permission, error)
	GetByIDs(ids []string) ([]*Permission, error)
	GetByCode(orgID, code string) (*Permission, error)
	List(orgScope *string, includeSystem bool) ([]*Permission, error)
	// DeactivateCascade flips active to false and deletes every
	// role_permissions row referencing the permission in one transaction.
	DeactivateCascade(id string) error

	// Resolver queries.
	GetRoleIDsForUser(userID string) ([]string, error)
	GetActiveForRoles(roleIDs []string) ([]*Permission, error)
}
