package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/clinic-management/internal"
	"github.com/frahmantamala/clinic-management/internal/transport"
	"github.com/frahmantamala/clinic-management/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

var _ = Describe("AuthHandler", func() {
	var (
		handler *Handler
		store   *mockCredentialStore
	)

	hash := func(password string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		return string(h)
	}

	login := func() *AuthResponse {
		body, err := json.Marshal(LoginDTO{Identifier: "sari@clinic.test", Password: "correct horse"})
		Expect(err).NotTo(HaveOccurred())
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Login(rec, req)
		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp AuthResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return &resp
	}

	BeforeEach(func() {
		store = &mockCredentialStore{users: map[string]*user.User{
			"user-1": {
				ID:           "user-1",
				OrgID:        "org-1",
				FullName:     "Dr. Sari",
				Email:        "sari@clinic.test",
				PasswordHash: hash("correct horse"),
				Status:       user.StatusActive,
				RoleCodes:    []string{"admin"},
			},
		}}
		resolver := &mockResolver{codes: map[string][]string{
			"user-1": {"patients.read"},
		}}
		issuer := NewJWTTokenIssuer("test-secret-with-at-least-32-characters", "clinic-test", 15*time.Minute)
		refreshService := NewRefreshTokenService(newMemoryRefreshTokenRepository(), 24*time.Hour)
		service := NewService(store, resolver, issuer, refreshService, &mockRecorder{}, bcrypt.MinCost, nil)
		handler = NewHandler(transport.NewBaseHandler(nil), service)
	})

	Describe("Login", func() {
		It("should serialize the user view in camelCase", func() {
			body, err := json.Marshal(LoginDTO{Identifier: "sari@clinic.test", Password: "correct horse"})
			Expect(err).NotTo(HaveOccurred())
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var raw map[string]json.RawMessage
			Expect(json.Unmarshal(rec.Body.Bytes(), &raw)).To(Succeed())
			Expect(raw).To(HaveKey("accessToken"))
			var userView map[string]json.RawMessage
			Expect(json.Unmarshal(raw["user"], &userView)).To(Succeed())
			Expect(userView).To(HaveKey("orgId"))
			Expect(userView).To(HaveKey("fullName"))
			Expect(userView).To(HaveKey("roleCodes"))
			Expect(userView).NotTo(HaveKey("org_id"))
		})
	})

	Describe("Logout", func() {
		It("should respond 204 with an empty body", func() {
			session := login()

			body, err := json.Marshal(RefreshTokenDTO{RefreshToken: session.RefreshToken})
			Expect(err).NotTo(HaveOccurred())
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			handler.Logout(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Body.Len()).To(BeZero())
		})

		It("should map an already-revoked token onto the error contract", func() {
			session := login()

			for _, expected := range []int{http.StatusNoContent, http.StatusUnauthorized} {
				body, err := json.Marshal(RefreshTokenDTO{RefreshToken: session.RefreshToken})
				Expect(err).NotTo(HaveOccurred())
				req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", bytes.NewReader(body))
				rec := httptest.NewRecorder()

				handler.Logout(rec, req)
				Expect(rec.Code).To(Equal(expected))
			}
		})
	})

	Describe("ChangePassword", func() {
		It("should respond 204 with an empty body", func() {
			body, err := json.Marshal(ChangePasswordDTO{
				CurrentPassword: "correct horse",
				NewPassword:     "battery staple",
			})
			Expect(err).NotTo(HaveOccurred())
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/change-password", bytes.NewReader(body))
			ctx := internal.ContextWithActor(req.Context(), &internal.Actor{UserID: "user-1", OrgID: "org-1"})
			rec := httptest.NewRecorder()

			handler.ChangePassword(rec, req.WithContext(ctx))

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Body.Len()).To(BeZero())
		})
	})
})
