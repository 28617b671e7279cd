package auth_test

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/basit/pitchvault-backend/auth"
	"github.com/basit/pitchvault-backend/testutil"
)

var secret = []byte("test-secret")

var _ = Describe("bearer tokens", func() {
	It("round-trips the subject", func() {
		id := uuid.NewString()
		token, exp, err := auth.GenerateAccessToken(secret, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(exp).To(BeTemporally("~", time.Now().Add(auth.AccessTokenTTL), time.Minute))

		sub, gotExp, err := auth.ValidateToken(secret, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(sub).To(Equal(id))
		Expect(gotExp.Unix()).To(Equal(exp.Unix()))
	})

	It("rejects another secret", func() {
		token, _, err := auth.GenerateAccessToken(secret, "u")
		Expect(err).NotTo(HaveOccurred())

		_, _, err = auth.ValidateToken([]byte("other"), token)
		Expect(err).To(HaveOccurred())
	})

	It("rejects expired tokens and foreign token types", func() {
		expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "u", "typ": "access", "exp": time.Now().Add(-time.Minute).Unix(),
		})
		s, err := expired.SignedString(secret)
		Expect(err).NotTo(HaveOccurred())
		_, _, err = auth.ValidateToken(secret, s)
		Expect(err).To(HaveOccurred())

		refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "u", "typ": "refresh", "exp": time.Now().Add(time.Hour).Unix(),
		})
		s, err = refresh.SignedString(secret)
		Expect(err).NotTo(HaveOccurred())
		_, _, err = auth.ValidateToken(secret, s)
		Expect(err).To(MatchError(ContainSubstring("token type")))
	})
})

var _ = Describe("Blacklist", func() {
	It("remembers tokens in memory until they expire", func() {
		ctx := context.Background()
		b := auth.NewBlacklist(nil)

		b.Add(ctx, "live", time.Now().Add(time.Hour))
		b.Add(ctx, "stale", time.Now().Add(-time.Second))

		Expect(b.Contains(ctx, "live")).To(BeTrue())
		Expect(b.Contains(ctx, "stale")).To(BeFalse())
		Expect(b.Contains(ctx, "unknown")).To(BeFalse())
	})
})

var _ = Describe("user id context", func() {
	It("carries the owner id", func() {
		id := uuid.New()
		got, err := auth.GetUserIDFromContext(auth.WithUserID(context.Background(), id))
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(id))

		_, err = auth.GetUserIDFromContext(context.Background())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("OwnerStore", func() {
	var (
		db     *gorm.DB
		owners *auth.OwnerStore
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = testutil.OpenDB(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			sqlDB, _ := db.DB()
			sqlDB.Close()
		})
		owners = auth.NewOwnerStore(db)
	})

	It("bootstraps the owner once", func() {
		key, err := owners.Bootstrap(ctx, "owner@example.com", "Owner", "s3cret!")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(HaveLen(48))

		again, err := owners.Bootstrap(ctx, "other@example.com", "", "pw")
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(BeEmpty())

		u, err := owners.ByAPIKey(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Email).To(Equal("owner@example.com"))
	})

	It("requires credentials for the first owner", func() {
		_, err := owners.Bootstrap(ctx, "", "", "")
		Expect(err).To(HaveOccurred())
	})

	It("authenticates with the password", func() {
		_, err := owners.Bootstrap(ctx, "owner@example.com", "", "s3cret!")
		Expect(err).NotTo(HaveOccurred())

		u, err := owners.Authenticate(ctx, "owner@example.com", "s3cret!")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Name).To(Equal("owner@example.com"))

		found, err := owners.ByID(ctx, u.ID.String())
		Expect(err).NotTo(HaveOccurred())
		Expect(found.Email).To(Equal(u.Email))

		_, err = owners.Authenticate(ctx, "owner@example.com", "wrong")
		Expect(err).To(MatchError(auth.ErrInvalidCredentials))
		_, err = owners.Authenticate(ctx, "nobody@example.com", "s3cret!")
		Expect(err).To(MatchError(auth.ErrInvalidCredentials))
	})

	It("returns nil for unknown API keys", func() {
		u, err := owners.ByAPIKey(ctx, "nope")
		Expect(err).NotTo(HaveOccurred())
		Expect(u).To(BeNil())
	})
})
