package role

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/frahmantamala/clinic-management/internal"
	"github.com/frahmantamala/clinic-management/internal/audit"
	"github.com/frahmantamala/clinic-management/internal/permission"
	"github.com/frahmantamala/clinic-management/internal/tenancy"
	"github.com/google/uuid"
)

// PermissionStore is the slice of the permission catalog the assignment
// logic needs.
type PermissionStore interface {
	GetByIDs(ids []string) ([]*permission.Permission, error)
}

type Service struct {
	repo    Repository
	perms   PermissionStore
	auditor audit.Recorder
	logger  *slog.Logger
}

func NewService(repo Repository, perms PermissionStore, auditor audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, perms: perms, auditor: auditor, logger: logger}
}

func (s *Service) Create(ctx context.Context, dto CreateRoleDTO) (*Role, error) {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	orgID, err := tenancy.ResolveOrganizationID(dto.OrgID, actor.OrgID, actor.IsSuperAdmin())
	if err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetByNameOrCode(orgID, dto.Name, dto.RoleCode); err != nil {
		return nil, internal.NewInternalError("failed to check role uniqueness", err)
	} else if existing != nil {
		return nil, internal.ErrDuplicateRole
	}

	now := time.Now()
	role := &Role{
		ID:          uuid.NewString(),
		OrgID:       orgID,
		Name:        dto.Name,
		RoleCode:    dto.RoleCode,
		Description: dto.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(role); err != nil {
		s.logger.Error("failed to create role", "name", dto.Name, "error", err)
		return nil, internal.NewInternalError("failed to create role", err)
	}

	if err := s.auditor.Record(actor.UserID, "create", "roles", map[string]interface{}{
		"id":        role.ID,
		"role_code": role.RoleCode,
	}, actor.IPAddress, actor.UserAgent); err != nil {
		return nil, err
	}

	return role, nil
}

func (s *Service) Update(ctx context.Context, id string, dto UpdateRoleDTO) (*Role, error) {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return nil, err
	}

	role, err := s.visibleByID(actor, id)
	if err != nil {
		return nil, err
	}

	name := role.Name
	code := role.RoleCode
	if dto.Name != "" {
		name = dto.Name
	}
	if dto.RoleCode != "" {
		code = dto.RoleCode
	}

	if name != role.Name || code != role.RoleCode {
		if existing, err := s.repo.GetByNameOrCode(role.OrgID, name, code); err != nil {
			return nil, internal.NewInternalError("failed to check role uniqueness", err)
		} else if existing != nil && existing.ID != role.ID {
			return nil, internal.ErrDuplicateRole
		}
	}

	role.Name = name
	role.RoleCode = code
	if dto.Description != "" {
		role.Description = dto.Description
	}
	role.UpdatedAt = time.Now()

	if err := s.repo.Update(role); err != nil {
		s.logger.Error("failed to update role", "id", id, "error", err)
		return nil, internal.NewInternalError("failed to update role", err)
	}

	if err := s.auditor.Record(actor.UserID, "update", "roles", map[string]interface{}{
		"id":        role.ID,
		"role_code": role.RoleCode,
	}, actor.IPAddress, actor.UserAgent); err != nil {
		return nil, err
	}

	return role, nil
}

// Delete removes a role, but only while nothing references it.
func (s *Service) Delete(ctx context.Context, id string) error {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return err
	}

	role, err := s.visibleByID(actor, id)
	if err != nil {
		return err
	}

	refs, err := s.repo.CountReferences(role.ID)
	if err != nil {
		return internal.NewInternalError("failed to count role references", err)
	}
	if refs > 0 {
		return internal.ErrRoleInUse
	}

	if err := s.repo.Delete(role.ID); err != nil {
		return internal.NewInternalError("failed to delete role", err)
	}

	return s.auditor.Record(actor.UserID, "delete", "roles", map[string]interface{}{
		"id": role.ID,
	}, actor.IPAddress, actor.UserAgent)
}

func (s *Service) Get(ctx context.Context, id string) (*Role, error) {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return nil, err
	}
	return s.visibleByID(actor, id)
}

func (s *Service) List(ctx context.Context, requestedOrgID *string) ([]*Role, error) {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return nil, err
	}

	scope := tenancy.ResolveScope(requestedOrgID, actor.OrgID, actor.IsSuperAdmin())
	roles, err := s.repo.List(scope)
	if err != nil {
		return nil, internal.NewInternalError("failed to list roles", err)
	}
	return roles, nil
}

// ListPermissions returns the permissions currently assigned to a role,
// sorted by code.
func (s *Service) ListPermissions(ctx context.Context, roleID string) ([]*permission.Permission, error) {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return nil, err
	}

	role, err := s.visibleByID(actor, roleID)
	if err != nil {
		return nil, err
	}

	ids, err := s.repo.AssignedPermissionIDs(role.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list role permissions", err)
	}

	perms, err := s.perms.GetByIDs(ids)
	if err != nil {
		return nil, internal.NewInternalError("failed to load permissions", err)
	}

	sort.Slice(perms, func(i, j int) bool {
		return perms[i].PermissionCode < perms[j].PermissionCode
	})
	return perms, nil
}

// ReplacePermissions swaps the role's full assignment set: all existing
// mappings are removed and the given set is inserted.
func (s *Service) ReplacePermissions(ctx context.Context, roleID string, dto AssignPermissionsDTO) error {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return err
	}
	if err := dto.Validate(); err != nil {
		return err
	}

	role, err := s.visibleByID(actor, roleID)
	if err != nil {
		return err
	}

	if err := s.validateAssignable(actor, role, dto.PermissionIDs); err != nil {
		return err
	}

	if err := s.repo.ReplaceAssignments(role.ID, role.OrgID, dto.PermissionIDs); err != nil {
		s.logger.Error("failed to replace role permissions", "role_id", roleID, "error", err)
		return internal.NewInternalError("failed to replace role permissions", err)
	}

	return s.auditor.Record(actor.UserID, "replace", "role_permissions", map[string]interface{}{
		"id":         role.ID,
		"target_ids": dto.PermissionIDs,
	}, actor.IPAddress, actor.UserAgent)
}

// AddPermissions unions the given set into the role's assignments, skipping
// ids already assigned.
func (s *Service) AddPermissions(ctx context.Context, roleID string, dto AssignPermissionsDTO) error {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return err
	}
	if err := dto.Validate(); err != nil {
		return err
	}

	role, err := s.visibleByID(actor, roleID)
	if err != nil {
		return err
	}

	if err := s.validateAssignable(actor, role, dto.PermissionIDs); err != nil {
		return err
	}

	if err := s.repo.AddAssignments(role.ID, role.OrgID, dto.PermissionIDs); err != nil {
		s.logger.Error("failed to add role permissions", "role_id", roleID, "error", err)
		return internal.NewInternalError("failed to add role permissions", err)
	}

	return s.auditor.Record(actor.UserID, "add", "role_permissions", map[string]interface{}{
		"id":         role.ID,
		"target_ids": dto.PermissionIDs,
	}, actor.IPAddress, actor.UserAgent)
}

func (s *Service) RemovePermission(ctx context.Context, roleID, permissionID string) error {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return err
	}

	role, err := s.visibleByID(actor, roleID)
	if err != nil {
		return err
	}

	removed, err := s.repo.RemoveAssignment(role.ID, permissionID)
	if err != nil {
		return internal.NewInternalError("failed to remove role permission", err)
	}
	if !removed {
		return internal.ErrAssignmentNotFound
	}

	return s.auditor.Record(actor.UserID, "remove", "role_permissions", map[string]interface{}{
		"id":         role.ID,
		"target_ids": []string{permissionID},
	}, actor.IPAddress, actor.UserAgent)
}

// validateAssignable enforces the assignment rules: every id must exist,
// tenant permissions must share the role's organization, and system-scope
// permissions are assignable only by a super-admin. Violations surface as
// NotFound, never Forbidden, so a tenant caller cannot confirm that a
// foreign permission id exists.
func (s *Service) validateAssignable(actor *internal.Actor, role *Role, permissionIDs []string) error {
	if len(permissionIDs) == 0 {
		return nil
	}

	perms, err := s.perms.GetByIDs(permissionIDs)
	if err != nil {
		return internal.NewInternalError("failed to load permissions", err)
	}

	byID := make(map[string]*permission.Permission, len(perms))
	for _, p := range perms {
		byID[p.ID] = p
	}

	for _, id := range permissionIDs {
		p, ok := byID[id]
		if !ok {
			return internal.ErrPermissionNotFound
		}
		if p.Scope == permission.ScopeSystem {
			if !actor.IsSuperAdmin() {
				return internal.ErrPermissionNotFound
			}
			continue
		}
		if p.OrgID != role.OrgID {
			return internal.ErrPermissionNotFound
		}
	}
	return nil
}

func (s *Service) visibleByID(actor *internal.Actor, id string) (*Role, error) {
	role, err := s.repo.GetByID(id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load role", err)
	}
	if role == nil {
		return nil, internal.ErrRoleNotFound
	}
	scope := tenancy.ResolveScope(nil, actor.OrgID, actor.IsSuperAdmin())
	if !tenancy.CanAccess(scope, role.OrgID) {
		return nil, internal.ErrRoleNotFound
	}
	return role, nil
}
