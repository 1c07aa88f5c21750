package permission

import (
	"context"
	"testing"

	"github.com/frahmantamala/clinic-management/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPermission(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Permission Module Suite")
}

type mockPermissionRepository struct {
	perms       map[string]*Permission
	userRoles   map[string][]string
	assignments map[string][]string // role id -> permission ids
	deactivated []string
}

func newMockPermissionRepository() *mockPermissionRepository {
	return &mockPermissionRepository{
		perms:       map[string]*Permission{},
		userRoles:   map[string][]string{},
		assignments: map[string][]string{},
	}
}

func (m *mockPermissionRepository) Create(p *Permission) error {
	m.perms[p.ID] = p
	return nil
}

func (m *mockPermissionRepository) Update(p *Permission) error {
	m.perms[p.ID] = p
	return nil
}

func (m *mockPermissionRepository) GetByID(id string) (*Permission, error) {
	return m.perms[id], nil
}

func (m *mockPermissionRepository) GetByIDs(ids []string) ([]*Permission, error) {
	out := make([]*Permission, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.perms[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPermissionRepository) GetByCode(orgID, code string) (*Permission, error) {
	for _, p := range m.perms {
		if p.OrgID == orgID && p.PermissionCode == code {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockPermissionRepository) List(orgScope *string, includeSystem bool) ([]*Permission, error) {
	var out []*Permission
	for _, p := range m.perms {
		if p.Scope == ScopeSystem {
			if includeSystem {
				out = append(out, p)
			}
			continue
		}
		if orgScope != nil && p.OrgID != *orgScope {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockPermissionRepository) DeactivateCascade(id string) error {
	if p, ok := m.perms[id]; ok {
		p.Active = false
	}
	m.deactivated = append(m.deactivated, id)
	for roleID, ids := range m.assignments {
		kept := ids[:0]
		for _, pid := range ids {
			if pid != id {
				kept = append(kept, pid)
			}
		}
		m.assignments[roleID] = kept
	}
	return nil
}

func (m *mockPermissionRepository) GetRoleIDsForUser(userID string) ([]string, error) {
	return m.userRoles[userID], nil
}

func (m *mockPermissionRepository) GetActiveForRoles(roleIDs []string) ([]*Permission, error) {
	var out []*Permission
	for _, roleID := range roleIDs {
		for _, pid := range m.assignments[roleID] {
			if p, ok := m.perms[pid]; ok && p.Active {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

type noopRecorder struct{}

func (noopRecorder) Record(actorUserID, action, resource string, extra map[string]interface{}, ipAddress, userAgent string) error {
	return nil
}

func tenantAdminCtx(userID, orgID string) context.Context {
	return internal.ContextWithActor(context.Background(), &internal.Actor{
		UserID:      userID,
		OrgID:       orgID,
		Permissions: []string{ManageAuthority},
	})
}

func superAdminCtx(userID string) context.Context {
	return internal.ContextWithActor(context.Background(), &internal.Actor{
		UserID:      userID,
		Permissions: []string{internal.SuperAdminPermission},
	})
}

var _ = Describe("PermissionService", func() {
	var (
		service *Service
		repo    *mockPermissionRepository
	)

	BeforeEach(func() {
		repo = newMockPermissionRepository()
		service = NewService(repo, noopRecorder{}, nil)
	})

	Describe("Create", func() {
		It("should derive the code from resource and action", func() {
			perm, err := service.Create(tenantAdminCtx("admin-1", "org-1"), CreatePermissionDTO{
				Name:     "Read Patients",
				Resource: "patients",
				Action:   "read",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(perm.PermissionCode).To(Equal("patients.read"))
			Expect(perm.Scope).To(Equal(ScopeTenant))
			Expect(perm.OrgID).To(Equal("org-1"))
			Expect(perm.Active).To(BeTrue())
		})

		It("should pin a tenant caller to its own organization regardless of the request body", func() {
			perm, err := service.Create(tenantAdminCtx("admin-1", "org-1"), CreatePermissionDTO{
				OrgID:    "org-2",
				Name:     "Read Patients",
				Resource: "patients",
				Action:   "read",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(perm.OrgID).To(Equal("org-1"))
		})

		It("should force system scope when the resource is system", func() {
			perm, err := service.Create(superAdminCtx("root"), CreatePermissionDTO{
				Name:     "Platform Settings",
				Resource: SystemResource,
				Action:   "settings",
				Scope:    ScopeTenant,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(perm.Scope).To(Equal(ScopeSystem))
			Expect(perm.OrgID).To(BeEmpty())
		})

		It("should reject system scope from a non-super-admin", func() {
			_, err := service.Create(tenantAdminCtx("admin-1", "org-1"), CreatePermissionDTO{
				Name:     "Platform Settings",
				Resource: "settings",
				Action:   "write",
				Scope:    ScopeSystem,
			})

			Expect(err).To(Equal(internal.ErrSystemScopeRequiresSuperAdmin))
		})

		It("should reject a duplicate code within the organization", func() {
			_, err := service.Create(tenantAdminCtx("admin-1", "org-1"), CreatePermissionDTO{
				Name: "Read Patients", Resource: "patients", Action: "read",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Create(tenantAdminCtx("admin-1", "org-1"), CreatePermissionDTO{
				Name: "Patients Reader", Resource: "patients", Action: "read",
			})
			Expect(err).To(Equal(internal.ErrDuplicatePermissionCode))
		})

		It("should allow the same code in a different organization", func() {
			_, err := service.Create(tenantAdminCtx("admin-1", "org-1"), CreatePermissionDTO{
				Name: "Read Patients", Resource: "patients", Action: "read",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Create(tenantAdminCtx("admin-2", "org-2"), CreatePermissionDTO{
				Name: "Read Patients", Resource: "patients", Action: "read",
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should require the manage authority", func() {
			ctx := internal.ContextWithActor(context.Background(), &internal.Actor{
				UserID: "user-1", OrgID: "org-1", Permissions: []string{"patients.read"},
			})

			_, err := service.Create(ctx, CreatePermissionDTO{
				Name: "Read Patients", Resource: "patients", Action: "read",
			})
			Expect(err).To(Equal(internal.ErrInsufficientScope))
		})
	})

	Describe("Update", func() {
		var existing *Permission

		BeforeEach(func() {
			var err error
			existing, err = service.Create(tenantAdminCtx("admin-1", "org-1"), CreatePermissionDTO{
				Name: "Read Patients", Resource: "patients", Action: "read",
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should recompute the code when the action changes", func() {
			perm, err := service.Update(tenantAdminCtx("admin-1", "org-1"), existing.ID, UpdatePermissionDTO{
				Action: "write",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(perm.PermissionCode).To(Equal("patients.write"))
		})

		It("should reject escalation to system scope by a non-super-admin", func() {
			_, err := service.Update(tenantAdminCtx("admin-1", "org-1"), existing.ID, UpdatePermissionDTO{
				Scope: ScopeSystem,
			})

			Expect(err).To(Equal(internal.ErrSystemScopeRequiresSuperAdmin))
		})

		It("should hide permissions of other organizations behind NotFound", func() {
			_, err := service.Update(tenantAdminCtx("admin-2", "org-2"), existing.ID, UpdatePermissionDTO{
				Name: "Renamed",
			})

			Expect(err).To(Equal(internal.ErrPermissionNotFound))
		})
	})

	Describe("Deactivate", func() {
		It("should flip active and cascade assignment deletion", func() {
			perm, err := service.Create(tenantAdminCtx("admin-1", "org-1"), CreatePermissionDTO{
				Name: "Read Patients", Resource: "patients", Action: "read",
			})
			Expect(err).NotTo(HaveOccurred())
			repo.assignments["role-1"] = []string{perm.ID}

			Expect(service.Deactivate(tenantAdminCtx("admin-1", "org-1"), perm.ID)).To(Succeed())

			Expect(repo.perms[perm.ID].Active).To(BeFalse())
			Expect(repo.assignments["role-1"]).To(BeEmpty())
		})

		It("should return NotFound for an unknown id", func() {
			err := service.Deactivate(tenantAdminCtx("admin-1", "org-1"), "ghost")

			Expect(err).To(Equal(internal.ErrPermissionNotFound))
		})
	})

	Describe("Get", func() {
		It("should hide system rows from tenant admins behind NotFound", func() {
			perm, err := service.Create(superAdminCtx("root"), CreatePermissionDTO{
				Name: "Super Admin", Resource: SystemResource, Action: "super_admin",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Get(tenantAdminCtx("admin-1", "org-1"), perm.ID)
			Expect(err).To(Equal(internal.ErrPermissionNotFound))

			found, err := service.Get(superAdminCtx("root"), perm.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(perm.ID))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			_, err := service.Create(tenantAdminCtx("admin-1", "org-1"), CreatePermissionDTO{
				Name: "Read Patients", Resource: "patients", Action: "read",
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Create(tenantAdminCtx("admin-2", "org-2"), CreatePermissionDTO{
				Name: "Read Invoices", Resource: "invoices", Action: "read",
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Create(superAdminCtx("root"), CreatePermissionDTO{
				Name: "Super Admin", Resource: SystemResource, Action: "super_admin",
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should never include system rows for a tenant admin, even when requested", func() {
			perms, err := service.List(tenantAdminCtx("admin-1", "org-1"), nil, true)

			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(HaveLen(1))
			Expect(perms[0].PermissionCode).To(Equal("patients.read"))
		})

		It("should ignore a requested foreign organization for a tenant admin", func() {
			org2 := "org-2"
			perms, err := service.List(tenantAdminCtx("admin-1", "org-1"), &org2, false)

			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(HaveLen(1))
			Expect(perms[0].OrgID).To(Equal("org-1"))
		})

		It("should let a super admin see everything including system rows", func() {
			perms, err := service.List(superAdminCtx("root"), nil, true)

			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(HaveLen(3))
		})
	})
})

var _ = Describe("Resolver", func() {
	var (
		resolver *Resolver
		repo     *mockPermissionRepository
	)

	addPerm := func(id, code string, active bool) {
		repo.perms[id] = &Permission{
			ID:             id,
			OrgID:          "org-1",
			PermissionCode: code,
			Scope:          ScopeTenant,
			Active:         active,
		}
	}

	BeforeEach(func() {
		repo = newMockPermissionRepository()
		resolver = NewResolver(repo)

		addPerm("p-read", "patients.read", true)
		addPerm("p-write", "patients.write", true)
		addPerm("p-old", "legacy.archive", false)

		repo.userRoles["user-1"] = []string{"role-a", "role-b"}
		repo.assignments["role-a"] = []string{"p-write", "p-read", "p-old"}
		repo.assignments["role-b"] = []string{"p-read"}
	})

	It("should union role permissions, dedupe and sort by code", func() {
		codes, err := resolver.ResolvePermissionCodes("user-1")

		Expect(err).NotTo(HaveOccurred())
		Expect(codes).To(Equal([]string{"patients.read", "patients.write"}))
	})

	It("should drop inactive permissions even when assignments still reference them", func() {
		codes, err := resolver.ResolvePermissionCodes("user-1")

		Expect(err).NotTo(HaveOccurred())
		Expect(codes).NotTo(ContainElement("legacy.archive"))
	})

	It("should return an empty set for a user with no roles", func() {
		codes, err := resolver.ResolvePermissionCodes("roleless")

		Expect(err).NotTo(HaveOccurred())
		Expect(codes).To(BeEmpty())
	})
})
