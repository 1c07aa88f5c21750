package postgres

import (
	"strings"

	"github.com/frahmantamala/clinic-management/internal/user"
	"gorm.io/gorm"
)

// UserRepository implements user.Repository using GORM.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(u *user.User) error {
	return r.db.Create(u).Error
}

func (r *UserRepository) Update(u *user.User) error {
	return r.db.Save(u).Error
}

func (r *UserRepository) GetByID(id string) (*user.User, error) {
	var u user.User
	err := r.db.Where("id = ?", id).First(&u).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindByIdentifier(identifier string) (*user.User, error) {
	var u user.User
	err := r.db.Where("LOWER(email) = ? OR phone = ?", strings.ToLower(identifier), identifier).
		First(&u).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ExistsByEmailOrPhone(orgID, email, phone, excludeID string) (bool, error) {
	query := r.db.Model(&user.User{}).Where("org_id = ?", orgID)
	if phone != "" {
		query = query.Where("LOWER(email) = ? OR phone = ?", strings.ToLower(email), phone)
	} else {
		query = query.Where("LOWER(email) = ?", strings.ToLower(email))
	}
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *UserRepository) List(orgScope *string, limit, offset int) ([]*user.User, error) {
	var users []*user.User
	query := r.db.Order("full_name ASC").Limit(limit).Offset(offset)
	if orgScope != nil {
		query = query.Where("org_id = ?", *orgScope)
	}
	err := query.Find(&users).Error
	return users, err
}

func (r *UserRepository) UpdatePassword(id, passwordHash string) error {
	return r.db.Model(&user.User{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash).Error
}

func (r *UserRepository) UserIDsForOrg(orgID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&user.User{}).
		Where("org_id = ?", orgID).
		Pluck("id", &ids).Error
	return ids, err
}
