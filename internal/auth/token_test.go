package auth

import (
	"time"

	"github.com/frahmantamala/clinic-management/internal"
	"github.com/frahmantamala/clinic-management/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("JWTTokenIssuer", func() {
	var issuer *JWTTokenIssuer

	testUser := &user.User{
		ID:        "user-1",
		OrgID:     "org-1",
		FullName:  "Dr. Sari",
		RoleCodes: []string{"admin"},
	}

	BeforeEach(func() {
		issuer = NewJWTTokenIssuer("test-secret-with-at-least-32-characters", "clinic-test", 15*time.Minute)
	})

	It("should round-trip the identity claims", func() {
		tokenString, err := issuer.CreateAccessToken(testUser, []string{"patients.read", "users.manage"})
		Expect(err).NotTo(HaveOccurred())

		claims, err := issuer.ValidateToken(tokenString)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.Subject).To(Equal("user-1"))
		Expect(claims.OrgID).To(Equal("org-1"))
		Expect(claims.Name).To(Equal("Dr. Sari"))
		Expect(claims.Roles).To(Equal([]string{"admin"}))
		Expect(claims.Permissions).To(Equal([]string{"patients.read", "users.manage"}))
		Expect(claims.Issuer).To(Equal("clinic-test"))
	})

	It("should reject a token signed with a different key", func() {
		other := NewJWTTokenIssuer("another-secret-with-at-least-32-chars!!", "clinic-test", 15*time.Minute)
		tokenString, err := other.CreateAccessToken(testUser, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = issuer.ValidateToken(tokenString)
		Expect(err).To(Equal(internal.ErrInvalidToken))
	})

	It("should reject an expired token with the expiry error", func() {
		shortLived := NewJWTTokenIssuer("test-secret-with-at-least-32-characters", "clinic-test", -time.Minute)
		tokenString, err := shortLived.CreateAccessToken(testUser, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = issuer.ValidateToken(tokenString)
		Expect(err).To(Equal(internal.ErrTokenExpired))
	})

	It("should reject garbage", func() {
		_, err := issuer.ValidateToken("not.a.jwt")
		Expect(err).To(Equal(internal.ErrInvalidToken))
	})
})
