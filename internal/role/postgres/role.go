package postgres

import (
	"time"

	"github.com/frahmantamala/clinic-management/internal/role"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleRepository implements role.Repository using GORM.
type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) role.Repository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) Create(ro *role.Role) error {
	return r.db.Create(ro).Error
}

func (r *RoleRepository) Update(ro *role.Role) error {
	return r.db.Save(ro).Error
}

func (r *RoleRepository) GetByID(id string) (*role.Role, error) {
	var ro role.Role
	err := r.db.Where("id = ?", id).First(&ro).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &ro, nil
}

func (r *RoleRepository) GetByIDs(ids []string) ([]*role.Role, error) {
	if len(ids) == 0 {
		return []*role.Role{}, nil
	}
	var roles []*role.Role
	err := r.db.Where("id IN ?", ids).Find(&roles).Error
	return roles, err
}

func (r *RoleRepository) GetByNameOrCode(orgID, name, roleCode string) (*role.Role, error) {
	var ro role.Role
	err := r.db.Where("org_id = ? AND (name = ? OR role_code = ?)", orgID, name, roleCode).First(&ro).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &ro, nil
}

func (r *RoleRepository) List(orgScope *string) ([]*role.Role, error) {
	var roles []*role.Role
	query := r.db.Order("name ASC")
	if orgScope != nil {
		query = query.Where("org_id = ?", *orgScope)
	}
	err := query.Find(&roles).Error
	return roles, err
}

func (r *RoleRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&role.Role{}).Error
}

func (r *RoleRepository) CountReferences(roleID string) (int64, error) {
	var assignments int64
	if err := r.db.Model(&role.RolePermission{}).
		Where("role_id = ?", roleID).
		Count(&assignments).Error; err != nil {
		return 0, err
	}

	// Role ids live in a JSON array column on users; a LIKE over the quoted
	// id is enough because ids are opaque UUIDs.
	var holders int64
	row := r.db.Raw("SELECT COUNT(*) FROM users WHERE role_ids LIKE ?", "%\""+roleID+"\"%").Row()
	if err := row.Scan(&holders); err != nil {
		return 0, err
	}

	return assignments + holders, nil
}

func (r *RoleRepository) AssignedPermissionIDs(roleID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&role.RolePermission{}).
		Where("role_id = ?", roleID).
		Pluck("permission_id", &ids).Error
	return ids, err
}

func (r *RoleRepository) ReplaceAssignments(roleID, orgID string, permissionIDs []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&role.RolePermission{}).Error; err != nil {
			return err
		}
		return insertAssignments(tx, roleID, orgID, permissionIDs, nil)
	})
}

func (r *RoleRepository) AddAssignments(roleID, orgID string, permissionIDs []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&role.RolePermission{}).
			Where("role_id = ?", roleID).
			Pluck("permission_id", &existing).Error; err != nil {
			return err
		}

		skip := make(map[string]bool, len(existing))
		for _, id := range existing {
			skip[id] = true
		}
		return insertAssignments(tx, roleID, orgID, permissionIDs, skip)
	})
}

func (r *RoleRepository) RemoveAssignment(roleID, permissionID string) (bool, error) {
	result := r.db.Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Delete(&role.RolePermission{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func insertAssignments(tx *gorm.DB, roleID, orgID string, permissionIDs []string, skip map[string]bool) error {
	now := time.Now()
	rows := make([]role.RolePermission, 0, len(permissionIDs))
	seen := make(map[string]bool, len(permissionIDs))
	for _, pid := range permissionIDs {
		if seen[pid] || skip[pid] {
			continue
		}
		seen[pid] = true
		rows = append(rows, role.RolePermission{
			ID:           uuid.NewString(),
			OrgID:        orgID,
			RoleID:       roleID,
			PermissionID: pid,
			CreatedAt:    now,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}
