package role

import (
	"time"
)

// ManageAuthority guards role CRUD and permission assignment.
const ManageAuthority = "roles.manage"

type Role struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	OrgID       string    `json:"org_id" gorm:"column:org_id;index;not null"`
	Name        string    `json:"name" gorm:"column:name;not null"`
	RoleCode    string    `json:"role_code" gorm:"column:role_code;not null"`
	Description string    `json:"description" gorm:"column:description"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

// RolePermission joins a role to a permission. Both sides share an
// organization unless the permission is system-scoped.
type RolePermission struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	OrgID        string    `json:"org_id" gorm:"column:org_id;index"`
	RoleID       string    `json:"role_id" gorm:"column:role_id;index;not null"`
	PermissionID string    `json:"permission_id" gorm:"column:permission_id;index;not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

type Repository interface {
	Create(role *Role) error
	Update(role *Role) error
	GetByID(id string) (*Role, error)
	GetByIDs(ids []string) ([]*Role, error)
	GetByNameOrCode(orgID, name, roleCode string) (*Role, error)
	List(orgScope *string) ([]*Role, error)
	Delete(id string) error
	// CountReferences counts role_permissions rows plus users holding the
	// role; deletion is blocked while it is non-zero.
	CountReferences(roleID string) (int64, error)

	AssignedPermissionIDs(roleID string) ([]string, error)
	ReplaceAssignments(roleID, orgID string, permissionIDs []string) error
	AddAssignments(roleID, orgID string, permissionIDs []string) error
	// RemoveAssignment reports whether the pair was actually assigned.
	RemoveAssignment(roleID, permissionID string) (bool, error)
}
