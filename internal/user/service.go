package user

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/clinic-management/internal"
	"github.com/frahmantamala/clinic-management/internal/audit"
	"github.com/frahmantamala/clinic-management/internal/role"
	"github.com/frahmantamala/clinic-management/internal/tenancy"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RoleStore is the slice of the role catalog needed to validate role
// references on a user.
type RoleStore interface {
	GetByIDs(ids []string) ([]*role.Role, error)
}

type Service struct {
	repo       Repository
	roles      RoleStore
	auditor    audit.Recorder
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo Repository, roles RoleStore, auditor audit.Recorder, bcryptCost int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, roles: roles, auditor: auditor, bcryptCost: bcryptCost, logger: logger}
}

func (s *Service) Create(ctx context.Context, dto CreateUserDTO) (*User, error) {
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

	if err := s.checkRoleReferences(orgID, dto.RoleIDs, dto.RoleCodes); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByEmailOrPhone(orgID, dto.Email, dto.Phone, "")
	if err != nil {
		return nil, internal.NewInternalError("failed to check user uniqueness", err)
	}
	if exists {
		return nil, internal.ErrDuplicateUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	now := time.Now()
	u := &User{
		ID:           uuid.NewString(),
		OrgID:        orgID,
		FullName:     dto.FullName,
		Email:        strings.ToLower(dto.Email),
		Phone:        dto.Phone,
		PasswordHash: string(hash),
		Status:       StatusActive,
		RoleIDs:      dto.RoleIDs,
		RoleCodes:    dto.RoleCodes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(u); err != nil {
		s.logger.Error("failed to create user", "email", dto.Email, "error", err)
		return nil, internal.NewInternalError("failed to create user", err)
	}

	if err := s.auditor.Record(actor.UserID, "create", "users", map[string]interface{}{
		"id": u.ID,
	}, actor.IPAddress, actor.UserAgent); err != nil {
		return nil, err
	}

	return u, nil
}

func (s *Service) Update(ctx context.Context, id string, dto UpdateUserDTO) (*User, error) {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.visibleByID(actor, id)
	if err != nil {
		return nil, err
	}

	if dto.FullName != "" {
		u.FullName = dto.FullName
	}
	if dto.Email != "" {
		u.Email = strings.ToLower(dto.Email)
	}
	if dto.Phone != "" {
		u.Phone = dto.Phone
	}
	if dto.Status != "" {
		u.Status = dto.Status
	}

	if dto.Email != "" || dto.Phone != "" {
		exists, err := s.repo.ExistsByEmailOrPhone(u.OrgID, u.Email, u.Phone, u.ID)
		if err != nil {
			return nil, internal.NewInternalError("failed to check user uniqueness", err)
		}
		if exists {
			return nil, internal.ErrDuplicateUser
		}
	}

	u.UpdatedAt = time.Now()
	if err := s.repo.Update(u); err != nil {
		s.logger.Error("failed to update user", "id", id, "error", err)
		return nil, internal.NewInternalError("failed to update user", err)
	}

	if err := s.auditor.Record(actor.UserID, "update", "users", map[string]interface{}{
		"id": u.ID,
	}, actor.IPAddress, actor.UserAgent); err != nil {
		return nil, err
	}

	return u, nil
}

// AssignRoles replaces the user's role set. Both id and code lists must
// name the same roles within the user's organization.
func (s *Service) AssignRoles(ctx context.Context, id string, dto AssignRolesDTO) (*User, error) {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.visibleByID(actor, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkRoleReferences(u.OrgID, dto.RoleIDs, dto.RoleCodes); err != nil {
		return nil, err
	}

	u.RoleIDs = dto.RoleIDs
	u.RoleCodes = dto.RoleCodes
	u.UpdatedAt = time.Now()

	if err := s.repo.Update(u); err != nil {
		s.logger.Error("failed to assign roles", "id", id, "error", err)
		return nil, internal.NewInternalError("failed to assign roles", err)
	}

	if err := s.auditor.Record(actor.UserID, "assign_roles", "users", map[string]interface{}{
		"id":         u.ID,
		"target_ids": dto.RoleIDs,
	}, actor.IPAddress, actor.UserAgent); err != nil {
		return nil, err
	}

	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return nil, err
	}
	return s.visibleByID(actor, id)
}

func (s *Service) List(ctx context.Context, requestedOrgID *string, limit, offset int) ([]*User, error) {
	actor, err := internal.RequireAuthority(ctx, ManageAuthority)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	scope := tenancy.ResolveScope(requestedOrgID, actor.OrgID, actor.IsSuperAdmin())
	users, err := s.repo.List(scope, limit, offset)
	if err != nil {
		return nil, internal.NewInternalError("failed to list users", err)
	}
	return users, nil
}

// checkRoleReferences verifies that ids and codes describe the same role
// set and that every role belongs to the target organization.
func (s *Service) checkRoleReferences(orgID string, roleIDs, roleCodes []string) error {
	if len(roleIDs) == 0 && len(roleCodes) == 0 {
		return nil
	}

	roles, err := s.roles.GetByIDs(roleIDs)
	if err != nil {
		return internal.NewInternalError("failed to load roles", err)
	}
	if len(roles) != len(roleIDs) {
		return internal.ErrRoleNotFound
	}

	codesByID := make(map[string]string, len(roles))
	for _, r := range roles {
		if r.OrgID != orgID {
			return internal.ErrRoleNotFound
		}
		codesByID[r.ID] = r.RoleCode
	}

	expected := make(map[string]bool, len(roleCodes))
	for _, c := range roleCodes {
		expected[c] = true
	}
	for _, id := range roleIDs {
		if !expected[codesByID[id]] {
			return internal.ErrRoleReferenceMismatch
		}
	}
	return nil
}

func (s *Service) visibleByID(actor *internal.Actor, id string) (*User, error) {
	u, err := s.repo.GetByID(id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load user", err)
	}
	if u == nil {
		return nil, internal.ErrUserNotFound
	}
	scope := tenancy.ResolveScope(nil, actor.OrgID, actor.IsSuperAdmin())
	if !tenancy.CanAccess(scope, u.OrgID) {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}
