package postgres

import (
	"github.com/frahmantamala/clinic-management/internal/audit"
	"gorm.io/gorm"
)

// AuditRepository implements audit.Repository using GORM. Inserts only;
// audit rows are immutable once written.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) audit.Repository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(entry *audit.Log) error {
	return r.db.Create(entry).Error
}

// List returns entries whose actor is one of the given users, newest first.
// Tenant-scoped callers pass the user ids of their own organization.
func (r *AuditRepository) List(orgUserIDs []string, limit, offset int) ([]*audit.Log, error) {
	var entries []*audit.Log
	err := r.db.Where("user_id IN ?", orgUserIDs).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}

// ListAll is the unrestricted listing used under a nil tenant scope.
func (r *AuditRepository) ListAll(limit, offset int) ([]*audit.Log, error) {
	var entries []*audit.Log
	err := r.db.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}
