package user

import (
	"strings"

	"github.com/frahmantamala/clinic-management/internal"
)

type CreateUserDTO struct {
	OrgID     string   `json:"org_id"`
	FullName  string   `json:"full_name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Password  string   `json:"password"`
	RoleIDs   []string `json:"role_ids"`
	RoleCodes []string `json:"role_codes"`
}

type UpdateUserDTO struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Status   string `json:"status"`
}

// AssignRolesDTO updates a user's role set. Both representations must be
// supplied and reference the same roles.
type AssignRolesDTO struct {
	RoleIDs   []string `json:"role_ids"`
	RoleCodes []string `json:"role_codes"`
}

func (d CreateUserDTO) Validate() error {
	if strings.TrimSpace(d.FullName) == "" {
		return internal.NewValidationFieldError("full_name", "full_name is required", internal.ErrCodeValidationFailed)
	}
	if strings.TrimSpace(d.Email) == "" {
		return internal.NewValidationFieldError("email", "email is required", internal.ErrCodeValidationFailed)
	}
	if len(d.Password) < 8 {
		return internal.NewValidationFieldError("password", "password must be at least 8 characters", internal.ErrCodeValidationFailed)
	}
	if len(d.RoleIDs) != len(d.RoleCodes) {
		return internal.ErrRoleReferenceMismatch
	}
	return nil
}

func (d UpdateUserDTO) Validate() error {
	if d.Status != "" && d.Status != StatusActive && d.Status != StatusInactive {
		return internal.NewValidationFieldError("status", "status must be active or inactive", internal.ErrCodeValidationFailed)
	}
	return nil
}

func (d AssignRolesDTO) Validate() error {
	if len(d.RoleIDs) != len(d.RoleCodes) {
		return internal.ErrRoleReferenceMismatch
	}
	return nil
}
