package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/frahmantamala/clinic-management/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestAudit(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Audit Module Suite")
}

type mockAuditRepository struct {
	entries       []*Log
	listedUserIDs []string
	returnError   error
}

func (m *mockAuditRepository) Create(entry *Log) error {
	if m.returnError != nil {
		return m.returnError
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepository) List(orgUserIDs []string, limit, offset int) ([]*Log, error) {
	m.listedUserIDs = orgUserIDs
	filtered := make([]*Log, 0, len(m.entries))
	for _, e := range m.entries {
		for _, id := range orgUserIDs {
			if e.UserID == id {
				filtered = append(filtered, e)
				break
			}
		}
	}
	return filtered, nil
}

func (m *mockAuditRepository) ListAll(limit, offset int) ([]*Log, error) {
	return m.entries, nil
}

type mockUserDirectory struct {
	orgUsers map[string][]string
}

func (m *mockUserDirectory) UserIDsForOrg(orgID string) ([]string, error) {
	return m.orgUsers[orgID], nil
}

var _ = Describe("AuditService", func() {
	var (
		service   *Service
		mockRepo  *mockAuditRepository
		mockUsers *mockUserDirectory
	)

	BeforeEach(func() {
		mockRepo = &mockAuditRepository{}
		mockUsers = &mockUserDirectory{orgUsers: map[string][]string{}}
		service = NewService(mockRepo, mockUsers, nil)
	})

	Describe("Record", func() {
		It("should persist an enriched payload", func() {
			err := service.Record("user-1", "create", "permissions", map[string]interface{}{
				"id":   "perm-1",
				"name": "Read patients",
			}, "10.0.0.1", "test-agent")

			Expect(err).NotTo(HaveOccurred())
			Expect(mockRepo.entries).To(HaveLen(1))

			entry := mockRepo.entries[0]
			Expect(entry.UserID).To(Equal("user-1"))
			Expect(entry.Action).To(Equal("create"))
			Expect(entry.Resource).To(Equal("permissions"))
			Expect(entry.IPAddress).To(Equal("10.0.0.1"))
			Expect(entry.UserAgent).To(Equal("test-agent"))
			Expect(entry.Payload["actor_user_id"]).To(Equal("user-1"))
			Expect(entry.Payload["name"]).To(Equal("Read patients"))
		})

		It("should reject a blank actor and write nothing", func() {
			err := service.Record("  ", "create", "permissions", nil, "", "")

			Expect(err).To(Equal(internal.ErrMissingActor))
			Expect(mockRepo.entries).To(BeEmpty())
		})

		It("should propagate repository failures to the caller", func() {
			mockRepo.returnError = errors.New("connection lost")

			err := service.Record("user-1", "update", "roles", nil, "", "")

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))
		})

		Describe("target id derivation", func() {
			It("should prefer an explicit target_ids list", func() {
				err := service.Record("user-1", "replace", "role_permissions", map[string]interface{}{
					"target_ids": []string{"p-1", "p-2"},
					"ids":        []string{"ignored"},
					"id":         "ignored",
				}, "", "")

				Expect(err).NotTo(HaveOccurred())
				Expect(mockRepo.entries[0].Payload["target_ids"]).To(Equal([]string{"p-1", "p-2"}))
			})

			It("should fall back to ids", func() {
				err := service.Record("user-1", "add", "role_permissions", map[string]interface{}{
					"ids": []interface{}{"p-3", "p-4"},
					"id":  "ignored",
				}, "", "")

				Expect(err).NotTo(HaveOccurred())
				Expect(mockRepo.entries[0].Payload["target_ids"]).To(Equal([]string{"p-3", "p-4"}))
			})

			It("should fall back to a single id", func() {
				err := service.Record("user-1", "deactivate", "permissions", map[string]interface{}{
					"id": "p-5",
				}, "", "")

				Expect(err).NotTo(HaveOccurred())
				Expect(mockRepo.entries[0].Payload["target_ids"]).To(Equal([]string{"p-5"}))
			})

			It("should default to an empty list", func() {
				err := service.Record("user-1", "login", "sessions", nil, "", "")

				Expect(err).NotTo(HaveOccurred())
				Expect(mockRepo.entries[0].Payload["target_ids"]).To(Equal([]string{}))
			})
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			mockRepo.entries = []*Log{
				{ID: "log-1", UserID: "user-1"},
				{ID: "log-2", UserID: "user-2"},
			}
			mockUsers.orgUsers["org-1"] = []string{"user-1"}
		})

		It("should require the audit read authority", func() {
			ctx := internal.ContextWithActor(context.Background(), &internal.Actor{
				UserID:      "user-1",
				OrgID:       "org-1",
				Permissions: []string{"users.manage"},
			})

			_, err := service.List(ctx, 50, 0)

			Expect(err).To(Equal(internal.ErrInsufficientScope))
		})

		It("should scope tenant admins to users of their organization", func() {
			ctx := internal.ContextWithActor(context.Background(), &internal.Actor{
				UserID:      "user-1",
				OrgID:       "org-1",
				Permissions: []string{ReadAuthority},
			})

			entries, err := service.List(ctx, 50, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(mockRepo.listedUserIDs).To(Equal([]string{"user-1"}))
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].ID).To(Equal("log-1"))
		})

		It("should return everything for super admins", func() {
			ctx := internal.ContextWithActor(context.Background(), &internal.Actor{
				UserID:      "root",
				Permissions: []string{internal.SuperAdminPermission},
			})

			entries, err := service.List(ctx, 50, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
		})

		It("should return an empty list for an organization with no users", func() {
			ctx := internal.ContextWithActor(context.Background(), &internal.Actor{
				UserID:      "user-9",
				OrgID:       "org-9",
				Permissions: []string{ReadAuthority},
			})

			entries, err := service.List(ctx, 50, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})
	})
})
