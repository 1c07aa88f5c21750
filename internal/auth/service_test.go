package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/clinic-management/internal"
	"github.com/frahmantamala/clinic-management/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestAuth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Module Suite")
}

type mockCredentialStore struct {
	users map[string]*user.User
}

func (m *mockCredentialStore) FindByIdentifier(identifier string) (*user.User, error) {
	for _, u := range m.users {
		if u.Email == identifier || u.Phone == identifier {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockCredentialStore) GetByID(id string) (*user.User, error) {
	return m.users[id], nil
}

func (m *mockCredentialStore) UpdatePassword(id, passwordHash string) error {
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

type mockResolver struct {
	codes map[string][]string
}

func (m *mockResolver) ResolvePermissionCodes(userID string) ([]string, error) {
	return m.codes[userID], nil
}

// memoryRefreshTokenRepository mirrors the conditional-update semantics of
// the database implementation so rotation races behave the same way.
type memoryRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func newMemoryRefreshTokenRepository() *memoryRefreshTokenRepository {
	return &memoryRefreshTokenRepository{tokens: map[string]*RefreshToken{}}
}

func (m *memoryRefreshTokenRepository) Create(t *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tokens[t.ID] = &cp
	return nil
}

func (m *memoryRefreshTokenRepository) FindByHash(hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryRefreshTokenRepository) MarkRevoked(id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok || t.RevokedAt != nil {
		return false, nil
	}
	t.RevokedAt = &now
	return true, nil
}

func (m *memoryRefreshTokenRepository) MarkRotated(id, replacedBy string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok || t.RevokedAt != nil {
		return false, nil
	}
	t.RevokedAt = &now
	t.ReplacedBy = &replacedBy
	return true, nil
}

type recordedAudit struct {
	action   string
	resource string
}

type mockRecorder struct {
	records []recordedAudit
}

func (m *mockRecorder) Record(actorUserID, action, resource string, extra map[string]interface{}, ipAddress, userAgent string) error {
	m.records = append(m.records, recordedAudit{action: action, resource: resource})
	return nil
}

var _ = Describe("AuthService", func() {
	var (
		service     *Service
		store       *mockCredentialStore
		resolver    *mockResolver
		refreshRepo *memoryRefreshTokenRepository
		recorder    *mockRecorder
	)

	hash := func(password string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		return string(h)
	}

	BeforeEach(func() {
		store = &mockCredentialStore{users: map[string]*user.User{
			"user-1": {
				ID:           "user-1",
				OrgID:        "org-1",
				FullName:     "Dr. Sari",
				Email:        "sari@clinic.test",
				Phone:        "0811111111",
				PasswordHash: hash("correct horse"),
				Status:       user.StatusActive,
				RoleCodes:    []string{"admin"},
			},
			"user-2": {
				ID:           "user-2",
				OrgID:        "org-1",
				FullName:     "Inactive One",
				Email:        "inactive@clinic.test",
				PasswordHash: hash("correct horse"),
				Status:       user.StatusInactive,
			},
		}}
		resolver = &mockResolver{codes: map[string][]string{
			"user-1": {"patients.read", "users.manage"},
		}}
		refreshRepo = newMemoryRefreshTokenRepository()
		recorder = &mockRecorder{}

		issuer := NewJWTTokenIssuer("test-secret-with-at-least-32-characters", "clinic-test", 15*time.Minute)
		refreshService := NewRefreshTokenService(refreshRepo, 24*time.Hour)
		service = NewService(store, resolver, issuer, refreshService, recorder, bcrypt.MinCost, nil)
	})

	Describe("Login", func() {
		It("should issue an access and refresh token pair for valid credentials", func() {
			resp, err := service.Login(LoginDTO{Identifier: "sari@clinic.test", Password: "correct horse"}, "10.0.0.1", "test-agent")

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.AccessToken).NotTo(BeEmpty())
			Expect(resp.RefreshToken).NotTo(BeEmpty())
			Expect(resp.TokenType).To(Equal("Bearer"))
			Expect(resp.ExpiresIn).To(Equal(int64(900)))
			Expect(resp.User.Permissions).To(Equal([]string{"patients.read", "users.manage"}))
		})

		It("should accept the phone number as identifier", func() {
			resp, err := service.Login(LoginDTO{Identifier: "0811111111", Password: "correct horse"}, "", "")

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.User.ID).To(Equal("user-1"))
		})

		It("should record a session audit entry", func() {
			_, err := service.Login(LoginDTO{Identifier: "sari@clinic.test", Password: "correct horse"}, "", "")

			Expect(err).NotTo(HaveOccurred())
			Expect(recorder.records).To(ContainElement(recordedAudit{action: "login", resource: "sessions"}))
		})

		It("should return the same error for an unknown identifier and a wrong password", func() {
			_, unknownErr := service.Login(LoginDTO{Identifier: "nobody@clinic.test", Password: "whatever"}, "", "")
			_, wrongErr := service.Login(LoginDTO{Identifier: "sari@clinic.test", Password: "wrong"}, "", "")

			Expect(unknownErr).To(Equal(internal.ErrInvalidCredentials))
			Expect(wrongErr).To(Equal(internal.ErrInvalidCredentials))
		})

		It("should reject an inactive account with Forbidden and issue nothing", func() {
			_, err := service.Login(LoginDTO{Identifier: "inactive@clinic.test", Password: "correct horse"}, "", "")

			Expect(err).To(Equal(internal.ErrUserInactive))
			Expect(refreshRepo.tokens).To(BeEmpty())
		})
	})

	Describe("Refresh", func() {
		var firstRefresh string

		BeforeEach(func() {
			resp, err := service.Login(LoginDTO{Identifier: "sari@clinic.test", Password: "correct horse"}, "", "")
			Expect(err).NotTo(HaveOccurred())
			firstRefresh = resp.RefreshToken
		})

		It("should rotate the token and invalidate the old one", func() {
			resp, err := service.Refresh(firstRefresh, "", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.RefreshToken).NotTo(Equal(firstRefresh))

			_, err = service.Refresh(firstRefresh, "", "")
			Expect(err).To(Equal(internal.ErrTokenRevoked))
		})

		It("should keep the rotated token usable", func() {
			resp, err := service.Refresh(firstRefresh, "", "")
			Expect(err).NotTo(HaveOccurred())

			again, err := service.Refresh(resp.RefreshToken, "", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(again.AccessToken).NotTo(BeEmpty())
		})

		It("should re-resolve permissions from the database on every refresh", func() {
			resolver.codes["user-1"] = []string{"patients.read"}

			resp, err := service.Refresh(firstRefresh, "", "")

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.User.Permissions).To(Equal([]string{"patients.read"}))
		})

		It("should reject a refresh for a user deactivated since login", func() {
			store.users["user-1"].Status = user.StatusInactive

			_, err := service.Refresh(firstRefresh, "", "")

			Expect(err).To(Equal(internal.ErrUserInactive))
		})

		It("should reject a garbage token", func() {
			_, err := service.Refresh("not-a-real-token", "", "")

			Expect(err).To(Equal(internal.ErrInvalidToken))
		})
	})

	Describe("Logout", func() {
		It("should revoke only the presented session", func() {
			first, err := service.Login(LoginDTO{Identifier: "sari@clinic.test", Password: "correct horse"}, "", "")
			Expect(err).NotTo(HaveOccurred())
			second, err := service.Login(LoginDTO{Identifier: "sari@clinic.test", Password: "correct horse"}, "", "")
			Expect(err).NotTo(HaveOccurred())

			Expect(service.Logout(first.RefreshToken, "", "")).To(Succeed())

			_, err = service.Refresh(first.RefreshToken, "", "")
			Expect(err).To(Equal(internal.ErrTokenRevoked))

			_, err = service.Refresh(second.RefreshToken, "", "")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should fail for a token that is already revoked", func() {
			resp, err := service.Login(LoginDTO{Identifier: "sari@clinic.test", Password: "correct horse"}, "", "")
			Expect(err).NotTo(HaveOccurred())

			Expect(service.Logout(resp.RefreshToken, "", "")).To(Succeed())
			Expect(service.Logout(resp.RefreshToken, "", "")).To(Equal(internal.ErrTokenRevoked))
		})
	})

	Describe("Me", func() {
		It("should return the profile with freshly resolved permissions", func() {
			me, err := service.Me("user-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(me.FullName).To(Equal("Dr. Sari"))
			Expect(me.Permissions).To(Equal([]string{"patients.read", "users.manage"}))
		})

		It("should return NotFound for an unknown user", func() {
			_, err := service.Me("ghost")

			Expect(err).To(Equal(internal.ErrUserNotFound))
		})
	})

	Describe("ChangePassword", func() {
		actorCtx := func(userID string) context.Context {
			return internal.ContextWithActor(context.Background(), &internal.Actor{UserID: userID, OrgID: "org-1"})
		}

		It("should replace the hash when the current password matches", func() {
			err := service.ChangePassword(actorCtx("user-1"), ChangePasswordDTO{
				CurrentPassword: "correct horse",
				NewPassword:     "battery staple",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Login(LoginDTO{Identifier: "sari@clinic.test", Password: "battery staple"}, "", "")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should reject a wrong current password and leave the hash unchanged", func() {
			before := store.users["user-1"].PasswordHash

			err := service.ChangePassword(actorCtx("user-1"), ChangePasswordDTO{
				CurrentPassword: "wrong",
				NewPassword:     "battery staple",
			})

			Expect(err).To(Equal(internal.ErrInvalidCredentials))
			Expect(store.users["user-1"].PasswordHash).To(Equal(before))
		})

		It("should require a verified actor", func() {
			err := service.ChangePassword(context.Background(), ChangePasswordDTO{
				CurrentPassword: "correct horse",
				NewPassword:     "battery staple",
			})

			Expect(err).To(Equal(internal.ErrInvalidToken))
		})
	})
})

var _ = Describe("RefreshTokenService rotation race", func() {
	It("should let exactly one of two concurrent rotations win", func() {
		repo := newMemoryRefreshTokenRepository()
		svc := NewRefreshTokenService(repo, time.Hour)

		raw, _, err := svc.Issue("user-1", "", "")
		Expect(err).NotTo(HaveOccurred())

		_, winner, err := svc.Rotate(raw, "", "")
		Expect(err).NotTo(HaveOccurred())

		_, _, err = svc.Rotate(raw, "", "")
		Expect(err).To(Equal(internal.ErrTokenRevoked))

		// the winner's replacement stays live
		Expect(repo.tokens[winner.ID].RevokedAt).To(BeNil())
	})

	It("should revoke the loser's replacement before anyone could use it", func() {
		repo := newMemoryRefreshTokenRepository()
		svc := NewRefreshTokenService(repo, time.Hour)

		raw, issued, err := svc.Issue("user-1", "", "")
		Expect(err).NotTo(HaveOccurred())

		// simulate a concurrent caller winning the conditional update first
		_, err2 := repo.MarkRotated(issued.ID, "other-token", time.Now())
		Expect(err2).To(BeNil())

		_, _, err = svc.Rotate(raw, "", "")
		Expect(err).To(Equal(internal.ErrTokenRevoked))

		// every token except the simulated winner's replacement is revoked
		for id, t := range repo.tokens {
			if id == issued.ID {
				continue
			}
			Expect(t.RevokedAt).NotTo(BeNil())
		}
	})

	It("should reject an expired token", func() {
		repo := newMemoryRefreshTokenRepository()
		svc := NewRefreshTokenService(repo, -time.Minute)

		raw, _, err := svc.Issue("user-1", "", "")
		Expect(err).NotTo(HaveOccurred())

		_, err = svc.RequireValid(raw)
		Expect(err).To(Equal(internal.ErrTokenExpired))
	})
})
