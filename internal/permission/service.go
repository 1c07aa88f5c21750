package permission

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/clinic-management/internal"
	"github.com/frahmantamala/clinic-management/internal/audit"
	"github.com/frahmantamala/clinic-management/internal/tenancy"
	"github.com/google/uuid"
)

// Service manages the permission catalog. Every mutation is audited and
// scope rules are enforced here, not in handlers.
type Service struct {
	repo    Repository
	auditor audit.Recorder
	logger  *slog.Logger
}

func NewService(repo Repository, auditor audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, auditor: auditor, logger: logger}
}

func (s *Service) Create(ctx context.Context, dto CreatePermissionDTO) (*Permission, error) {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	scope := dto.Scope
	if scope == "" {
		scope = ScopeTenant
	}
	if dto.Resource == SystemResource {
		scope = ScopeSystem
	}
	if scope == ScopeSystem && !actor.IsSuperAdmin() {
		return nil, internal.ErrSystemScopeRequiresSuperAdmin
	}

	orgID := ""
	if scope == ScopeTenant {
		orgID, err = tenancy.ResolveOrganizationID(dto.OrgID, actor.OrgID, actor.IsSuperAdmin())
		if err != nil {
			return nil, err
		}
	}

	code := Code(dto.Resource, dto.Action)
	if existing, err := s.repo.GetByCode(orgID, code); err != nil {
		return nil, internal.NewInternalError("failed to check permission code uniqueness", err)
	} else if existing != nil {
		return nil, internal.ErrDuplicatePermissionCode
	}

	now := time.Now()
	perm := &Permission{
		ID:             uuid.NewString(),
		OrgID:          orgID,
		Name:           dto.Name,
		PermissionCode: code,
		Scope:          scope,
		Resource:       dto.Resource,
		Action:         dto.Action,
		Description:    dto.Description,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(perm); err != nil {
		s.logger.Error("failed to create permission", "code", code, "error", err)
		return nil, internal.NewInternalError("failed to create permission", err)
	}

	if err := s.auditor.Record(actor.UserID, "create", "permissions", map[string]interface{}{
		"id":              perm.ID,
		"permission_code": perm.PermissionCode,
		"scope":           perm.Scope,
	}, actor.IPAddress, actor.UserAgent); err != nil {
		return nil, err
	}

	return perm, nil
}

func (s *Service) Update(ctx context.Context, id string, dto UpdatePermissionDTO) (*Permission, error) {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	perm, err := s.visibleByID(actor, id)
	if err != nil {
		return nil, err
	}

	if dto.Name != "" {
		perm.Name = dto.Name
	}
	if dto.Resource != "" {
		perm.Resource = dto.Resource
	}
	if dto.Action != "" {
		perm.Action = dto.Action
	}
	if dto.Description != "" {
		perm.Description = dto.Description
	}

	scope := perm.Scope
	if dto.Scope != "" {
		scope = dto.Scope
	}
	if perm.Resource == SystemResource {
		scope = ScopeSystem
	}
	if scope == ScopeSystem && perm.Scope != ScopeSystem && !actor.IsSuperAdmin() {
		return nil, internal.ErrSystemScopeRequiresSuperAdmin
	}
	perm.Scope = scope

	// Code is always derived from resource and action; changing either
	// re-triggers the uniqueness check.
	code := Code(perm.Resource, perm.Action)
	if code != perm.PermissionCode {
		if existing, err := s.repo.GetByCode(perm.OrgID, code); err != nil {
			return nil, internal.NewInternalError("failed to check permission code uniqueness", err)
		} else if existing != nil && existing.ID != perm.ID {
			return nil, internal.ErrDuplicatePermissionCode
		}
	}
	perm.PermissionCode = code
	perm.UpdatedAt = time.Now()

	if err := s.repo.Update(perm); err != nil {
		s.logger.Error("failed to update permission", "id", id, "error", err)
		return nil, internal.NewInternalError("failed to update permission", err)
	}

	if err := s.auditor.Record(actor.UserID, "update", "permissions", map[string]interface{}{
		"id":              perm.ID,
		"permission_code": perm.PermissionCode,
	}, actor.IPAddress, actor.UserAgent); err != nil {
		return nil, err
	}

	return perm, nil
}

// Deactivate flips active to false and, in the same operation, deletes
// every role assignment referencing the permission so stale elevated access
// cannot survive.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return err
	}

	perm, err := s.visibleByID(actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeactivateCascade(perm.ID); err != nil {
		s.logger.Error("failed to deactivate permission", "id", id, "error", err)
		return internal.NewInternalError("failed to deactivate permission", err)
	}

	return s.auditor.Record(actor.UserID, "deactivate", "permissions", map[string]interface{}{
		"id":              perm.ID,
		"permission_code": perm.PermissionCode,
	}, actor.IPAddress, actor.UserAgent)
}

func (s *Service) Get(ctx context.Context, id string) (*Permission, error) {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return nil, err
	}
	return s.visibleByID(actor, id)
}

// List returns catalog entries under the actor's tenant scope. System-scope
// rows are excluded for non-super-admins even when includeSystem is
// requested.
func (s *Service) List(ctx context.Context, requestedOrgID *string, includeSystem bool) ([]*Permission, error) {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return nil, err
	}

	superAdmin := actor.IsSuperAdmin()
	if !superAdmin {
		includeSystem = false
	}
	scope := tenancy.ResolveScope(requestedOrgID, actor.OrgID, superAdmin)

	perms, err := s.repo.List(scope, includeSystem)
	if err != nil {
		return nil, internal.NewInternalError("failed to list permissions", err)
	}
	return perms, nil
}

// visibleByID loads a permission and translates anything outside the
// actor's scope into NotFound.
func (s *Service) visibleByID(actor *internal.Actor, id string) (*Permission, error) {
	perm, err := s.repo.GetByID(id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load permission", err)
	}
	if perm == nil {
		return nil, internal.ErrPermissionNotFound
	}
	if perm.Scope == ScopeSystem {
		if !actor.IsSuperAdmin() {
			return nil, internal.ErrPermissionNotFound
		}
		return perm, nil
	}
	scope := tenancy.ResolveScope(nil, actor.OrgID, actor.IsSuperAdmin())
	if !tenancy.CanAccess(scope, perm.OrgID) {
		return nil, internal.ErrPermissionNotFound
	}
	return perm, nil
}

// Resolver maps a user to its effective capability list: user -> roles ->
// role_permissions -> permissions, deduplicated and sorted by code. The
// active flag is re-checked at read time, so a deactivated permission never
// resolves even if a stale assignment row still references it.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

func (r *Resolver) ResolvePermissions(userID string) ([]*Permission, error) {
	roleIDs, err := r.repo.GetRoleIDsForUser(userID)
	if err != nil {
		return nil, err
	}
	if len(roleIDs) == 0 {
		return []*Permission{}, nil
	}

	perms, err := r.repo.GetActiveForRoles(roleIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(perms))
	deduped := make([]*Permission, 0, len(perms))
	for _, p := range perms {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		deduped = append(deduped, p)
	}

	sort.Slice(deduped, func(i, j int) bool {
		return deduped[i].PermissionCode < deduped[j].PermissionCode
	})
	return deduped, nil
}

func (r *Resolver) ResolvePermissionCodes(userID string) ([]string, error) {
	perms, err := r.ResolvePermissions(userID)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(perms))
	for _, p := range perms {
		if strings.TrimSpace(p.PermissionCode) == "" {
			continue
		}
		codes = append(codes, p.PermissionCode)
	}
	return codes, nil
}
