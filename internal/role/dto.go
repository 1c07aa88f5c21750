package role

import (
	"strings"

	"github.com/frahmantamala/clinic-management/internal"
)

type CreateRoleDTO struct {
	OrgID       string `json:"org_id"`
	Name        string `json:"name"`
	RoleCode    string `json:"role_code"`
	Description string `json:"description"`
}

type UpdateRoleDTO struct {
	Name        string `json:"name"`
	RoleCode    string `json:"role_code"`
	Description string `json:"description"`
}

// AssignPermissionsDTO carries the permission id set for replace and add
// operations on a role.
type AssignPermissionsDTO struct {
	PermissionIDs []string `json:"permission_ids"`
}

func (d CreateRoleDTO) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return internal.NewValidationFieldError("name", "name is required", internal.ErrCodeValidationFailed)
	}
	if strings.TrimSpace(d.RoleCode) == "" {
		return internal.NewValidationFieldError("role_code", "role_code is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

func (d AssignPermissionsDTO) Validate() error {
	for _, id := range d.PermissionIDs {
		if strings.TrimSpace(id) == "" {
			return internal.NewValidationFieldError("permission_ids", "permission ids must not be blank", internal.ErrCodeValidationFailed)
		}
	}
	return nil
}
