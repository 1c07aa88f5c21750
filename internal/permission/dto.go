package permission

import (
	"strings"

	"github.com/frahmantamala/clinic-management/internal"
)

type CreatePermissionDTO struct {
	OrgID       string `json:"org_id"`
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Scope       string `json:"scope"`
	Description string `json:"description"`
}

// UpdatePermissionDTO carries partial updates; empty fields keep the stored
// value. Scope left empty keeps the existing scope.
type UpdatePermissionDTO struct {
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Scope       string `json:"scope"`
	Description string `json:"description"`
}

func validScope(scope string) bool {
	return scope == "" || scope == ScopeTenant || scope == ScopeSystem
}

func (d CreatePermissionDTO) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return internal.NewValidationFieldError("name", "name is required", internal.ErrCodeValidationFailed)
	}
	if strings.TrimSpace(d.Resource) == "" {
		return internal.NewValidationFieldError("resource", "resource is required", internal.ErrCodeValidationFailed)
	}
	if strings.TrimSpace(d.Action) == "" {
		return internal.NewValidationFieldError("action", "action is required", internal.ErrCodeValidationFailed)
	}
	if !validScope(d.Scope) {
		return internal.NewValidationFieldError("scope", "scope must be tenant or system", internal.ErrCodeValidationFailed)
	}
	return nil
}

func (d UpdatePermissionDTO) Validate() error {
	if !validScope(d.Scope) {
		return internal.NewValidationFieldError("scope", "scope must be tenant or system", internal.ErrCodeValidationFailed)
	}
	return nil
}
