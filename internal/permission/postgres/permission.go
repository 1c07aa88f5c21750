package postgres

import (
	"encoding/json"

	"github.com/frahmantamala/clinic-management/internal/permission"
	"gorm.io/gorm"
)

// PermissionRepository implements permission.Repository using GORM.
type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) permission.Repository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) Create(p *permission.Permission) error {
	return r.db.Create(p).Error
}

func (r *PermissionRepository) Update(p *permission.Permission) error {
	return r.db.Save(p).Error
}

func (r *PermissionRepository) GetByID(id string) (*permission.Permission, error) {
	var p permission.Permission
	err := r.db.Where("id = ?", id).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PermissionRepository) GetByIDs(ids []string) ([]*permission.Permission, error) {
	if len(ids) == 0 {
		return []*permission.Permission{}, nil
	}
	var perms []*permission.Permission
	err := r.db.Where("id IN ?", ids).Find(&perms).Error
	return perms, err
}

func (r *PermissionRepository) GetByCode(orgID, code string) (*permission.Permission, error) {
	var p permission.Permission
	err := r.db.Where("org_id = ? AND permission_code = ?", orgID, code).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PermissionRepository) List(orgScope *string, includeSystem bool) ([]*permission.Permission, error) {
	var perms []*permission.Permission

	query := r.db.Order("permission_code ASC")
	if orgScope == nil {
		if !includeSystem {
			query = query.Where("scope <> ?", permission.ScopeSystem)
		}
	} else if includeSystem {
		query = query.Where("org_id = ? OR scope = ?", *orgScope, permission.ScopeSystem)
	} else {
		query = query.Where("org_id = ? AND scope <> ?", *orgScope, permission.ScopeSystem)
	}

	err := query.Find(&perms).Error
	return perms, err
}

// DeactivateCascade flips the active flag and removes every role assignment
// referencing the permission in one transaction, so no role keeps elevated
// access through a stale mapping.
func (r *PermissionRepository) DeactivateCascade(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&permission.Permission{}).
			Where("id = ?", id).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Exec("DELETE FROM role_permissions WHERE permission_id = ?", id).Error
	})
}

// GetRoleIDsForUser reads the role id list off the user record. Role ids
// are stored as a JSON array column.
func (r *PermissionRepository) GetRoleIDsForUser(userID string) ([]string, error) {
	var raw string
	row := r.db.Raw("SELECT role_ids FROM users WHERE id = ?", userID).Row()
	if err := row.Scan(&raw); err != nil {
		return nil, err
	}
	if raw == "" {
		return []string{}, nil
	}

	var roleIDs []string
	if err := json.Unmarshal([]byte(raw), &roleIDs); err != nil {
		return nil, err
	}
	return roleIDs, nil
}

// GetActiveForRoles joins assignments to permissions, re-checking the
// active flag at read time.
func (r *PermissionRepository) GetActiveForRoles(roleIDs []string) ([]*permission.Permission, error) {
	if len(roleIDs) == 0 {
		return []*permission.Permission{}, nil
	}

	var perms []*permission.Permission
	err := r.db.
		Joins("JOIN role_permissions rp ON rp.permission_id = permissions.id").
		Where("rp.role_id IN ? AND permissions.active = ?", roleIDs, true).
		Find(&perms).Error
	return perms, err
}
