package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/frahmantamala/clinic-management/internal"
	"github.com/frahmantamala/clinic-management/internal/permission"
	"github.com/frahmantamala/clinic-management/internal/role"
	"github.com/frahmantamala/clinic-management/internal/user"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with bootstrap data",
	Long:  `Seed the database with a platform organization, a super-admin account and the base permission catalog.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to open gorm session: %v", err)
		}

		if clearData {
			for _, table := range []string{"audit_logs", "refresh_tokens", "role_permissions", "users", "roles", "permissions", "organizations"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		orgID := seedOrganization(db, "Platform", "platform")
		superAdminPermID := seedSystemPermission(db)
		basePermIDs := seedBasePermissions(db, orgID)

		adminRole := seedRole(db, orgID, "Administrator", "admin", append(basePermIDs, superAdminPermID))
		seedSuperAdmin(db, orgID, adminRole)

		fmt.Println("Seeding complete")
	},
}

func seedOrganization(db *gorm.DB, name, slug string) string {
	var id string
	row := db.Raw("SELECT id FROM organizations WHERE slug = ?", slug).Row()
	if err := row.Scan(&id); err == nil {
		fmt.Println("organization already exists:", slug)
		return id
	}

	id = uuid.NewString()
	if err := db.Exec(
		"INSERT INTO organizations (id, name, slug, created_at, updated_at) VALUES (?, ?, ?, now(), now())",
		id, name, slug,
	).Error; err != nil {
		log.Fatalf("failed to insert organization: %v", err)
	}
	fmt.Println("Seeded organization:", slug)
	return id
}

// seedSystemPermission installs the super-admin capability. It lives outside
// every organization, so its org_id is empty.
func seedSystemPermission(db *gorm.DB) string {
	existing := findPermissionByCode(db, "", internal.SuperAdminPermission)
	if existing != "" {
		return existing
	}

	now := time.Now()
	perm := &permission.Permission{
		ID:             uuid.NewString(),
		OrgID:          "",
		Name:           "Super Admin",
		PermissionCode: internal.SuperAdminPermission,
		Scope:          permission.ScopeSystem,
		Resource:       permission.SystemResource,
		Action:         "super_admin",
		Description:    "Unrestricted platform access",
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.Create(perm).Error; err != nil {
		log.Fatalf("failed to insert super admin permission: %v", err)
	}
	fmt.Println("Seeded permission:", perm.PermissionCode)
	return perm.ID
}

func seedBasePermissions(db *gorm.DB, orgID string) []string {
	base := []struct {
		Name     string
		Resource string
		Action   string
		Desc     string
	}{
		{"Manage Permissions", "permissions", "manage", "Administer the permission catalog"},
		{"Manage Roles", "roles", "manage", "Administer roles and their assignments"},
		{"Manage Users", "users", "manage", "Administer user accounts"},
		{"Read Audit Trail", "audit", "read", "Read the audit trail"},
	}

	ids := make([]string, 0, len(base))
	now := time.Now()
	for _, p := range base {
		code := permission.Code(p.Resource, p.Action)
		if existing := findPermissionByCode(db, orgID, code); existing != "" {
			ids = append(ids, existing)
			continue
		}

		perm := &permission.Permission{
			ID:             uuid.NewString(),
			OrgID:          orgID,
			Name:           p.Name,
			PermissionCode: code,
			Scope:          permission.ScopeTenant,
			Resource:       p.Resource,
			Action:         p.Action,
			Description:    p.Desc,
			Active:         true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := db.Create(perm).Error; err != nil {
			log.Fatalf("failed to insert permission %s: %v", code, err)
		}
		fmt.Println("Seeded permission:", code)
		ids = append(ids, perm.ID)
	}
	return ids
}

func seedRole(db *gorm.DB, orgID, name, code string, permissionIDs []string) *role.Role {
	var existing role.Role
	err := db.Where("org_id = ? AND role_code = ?", orgID, code).First(&existing).Error
	if err == nil {
		fmt.Println("role already exists:", code)
		ensureRolePermissions(db, existing.ID, orgID, permissionIDs)
		return &existing
	}

	now := time.Now()
	r := &role.Role{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Name:      name,
		RoleCode:  code,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(r).Error; err != nil {
		log.Fatalf("failed to insert role %s: %v", code, err)
	}
	fmt.Println("Seeded role:", code)
	ensureRolePermissions(db, r.ID, orgID, permissionIDs)
	return r
}

func ensureRolePermissions(db *gorm.DB, roleID, orgID string, permissionIDs []string) {
	for _, pid := range permissionIDs {
		var exists int
		row := db.Raw("SELECT 1 FROM role_permissions WHERE role_id = ? AND permission_id = ?", roleID, pid).Row()
		if err := row.Scan(&exists); err == nil {
			continue
		}

		rp := &role.RolePermission{
			ID:           uuid.NewString(),
			OrgID:        orgID,
			RoleID:       roleID,
			PermissionID: pid,
			CreatedAt:    time.Now(),
		}
		if err := db.Create(rp).Error; err != nil {
			log.Fatalf("failed to assign permission %s to role %s: %v", pid, roleID, err)
		}
	}
}

func seedSuperAdmin(db *gorm.DB, orgID string, adminRole *role.Role) {
	email := "admin@clinic.local"
	var id string
	row := db.Raw("SELECT id FROM users WHERE LOWER(email) = ?", email).Row()
	if err := row.Scan(&id); err == nil {
		fmt.Println("super admin already exists:", email)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme-now"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	now := time.Now()
	u := &user.User{
		ID:           uuid.NewString(),
		OrgID:        orgID,
		FullName:     "Platform Admin",
		Email:        email,
		PasswordHash: string(hash),
		Status:       user.StatusActive,
		RoleIDs:      []string{adminRole.ID},
		RoleCodes:    []string{adminRole.RoleCode},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(u).Error; err != nil {
		log.Fatalf("failed to insert super admin: %v", err)
	}
	fmt.Println("Seeded super admin:", email)
}

func findPermissionByCode(db *gorm.DB, orgID, code string) string {
	var id string
	row := db.Raw("SELECT id FROM permissions WHERE org_id = ? AND permission_code = ?", orgID, code).Row()
	if err := row.Scan(&id); err != nil {
		return ""
	}
	return id
}
