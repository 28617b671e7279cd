package access_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/basit/pitchvault-backend/access"
	"github.com/basit/pitchvault-backend/models"
)

type mockLookup struct {
	tokenByValueFn func(ctx context.Context, value string) (*models.AccessToken, error)
	pitchByIDFn    func(ctx context.Context, id uuid.UUID) (*models.Pitch, error)
	pitchCalls     int
}

func (m *mockLookup) TokenByValue(ctx context.Context, value string) (*models.AccessToken, error) {
	return m.tokenByValueFn(ctx, value)
}

func (m *mockLookup) PitchByID(ctx context.Context, id uuid.UUID) (*models.Pitch, error) {
	m.pitchCalls++
	return m.pitchByIDFn(ctx, id)
}

func ptr[T any](v T) *T { return &v }

var _ = Describe("Validator", func() {
	var (
		now       time.Time
		pitch     *models.Pitch
		token     *models.AccessToken
		lookup    *mockLookup
		validator *access.Validator
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		pitch = &models.Pitch{ID: uuid.New(), IsPublished: true}
		token = &models.AccessToken{ID: uuid.New(), PitchID: pitch.ID, Token: "tok"}
		lookup = &mockLookup{
			tokenByValueFn: func(_ context.Context, value string) (*models.AccessToken, error) {
				if value == token.Token {
					return token, nil
				}
				return nil, nil
			},
			pitchByIDFn: func(_ context.Context, id uuid.UUID) (*models.Pitch, error) {
				if id == pitch.ID {
					return pitch, nil
				}
				return nil, nil
			},
		}
		validator = access.NewValidator(lookup).WithClock(func() time.Time { return now })
	})

	It("grants a valid token on a published pitch", func() {
		d, err := validator.Validate(ctx, "tok")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Granted).To(BeTrue())
		Expect(d.PitchID).To(Equal(pitch.ID))
		Expect(d.Token).To(Equal(token))
	})

	It("denies an unknown token without loading a pitch", func() {
		d, err := validator.Validate(ctx, "nope")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Granted).To(BeFalse())
		Expect(d.Reason).To(Equal(access.ReasonNotFound))
		Expect(lookup.pitchCalls).To(BeZero())
	})

	It("denies an empty token", func() {
		d, err := validator.Validate(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Reason).To(Equal(access.ReasonNotFound))
	})

	It("reports revocation before expiry and usage limit", func() {
		token.IsRevoked = true
		token.ExpiresAt = ptr(now.Add(-time.Hour).Unix())
		token.MaxUses = ptr(int64(1))
		token.UseCount = 5
		pitch.IsPublished = false

		d, err := validator.Validate(ctx, "tok")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Reason).To(Equal(access.ReasonRevoked))
	})

	It("reports expiry before the usage limit", func() {
		token.ExpiresAt = ptr(now.Add(-time.Second).Unix())
		token.MaxUses = ptr(int64(1))
		token.UseCount = 1

		d, _ := validator.Validate(ctx, "tok")
		Expect(d.Reason).To(Equal(access.ReasonExpired))
	})

	It("accepts a token expiring exactly now", func() {
		token.ExpiresAt = ptr(now.Unix())

		d, _ := validator.Validate(ctx, "tok")
		Expect(d.Granted).To(BeTrue())
	})

	It("accepts a token that expires in the future", func() {
		token.ExpiresAt = ptr(now.Add(time.Hour).Unix())

		d, _ := validator.Validate(ctx, "tok")
		Expect(d.Granted).To(BeTrue())
	})

	It("denies once the use count reaches the limit", func() {
		token.MaxUses = ptr(int64(2))
		token.UseCount = 1
		d, _ := validator.Validate(ctx, "tok")
		Expect(d.Granted).To(BeTrue())

		token.UseCount = 2
		d, _ = validator.Validate(ctx, "tok")
		Expect(d.Reason).To(Equal(access.ReasonUsageLimitReached))
	})

	It("reports token failures before loading the pitch", func() {
		token.MaxUses = ptr(int64(1))
		token.UseCount = 1

		_, _ = validator.Validate(ctx, "tok")
		Expect(lookup.pitchCalls).To(BeZero())
	})

	It("denies an unpublished pitch", func() {
		pitch.IsPublished = false

		d, _ := validator.Validate(ctx, "tok")
		Expect(d.Reason).To(Equal(access.ReasonPitchUnavailable))
		Expect(d.Token).To(BeNil())
	})

	It("denies a token whose pitch is gone", func() {
		token.PitchID = uuid.New()

		d, _ := validator.Validate(ctx, "tok")
		Expect(d.Reason).To(Equal(access.ReasonPitchUnavailable))
	})

	It("returns lookup errors", func() {
		lookup.tokenByValueFn = func(context.Context, string) (*models.AccessToken, error) {
			return nil, errors.New("db down")
		}

		_, err := validator.Validate(ctx, "tok")
		Expect(err).To(MatchError(ContainSubstring("db down")))
	})

	It("gives the same decision on repeated calls", func() {
		token.MaxUses = ptr(int64(3))
		token.UseCount = 2
		for i := 0; i < 5; i++ {
			d, _ := validator.Validate(ctx, "tok")
			Expect(d.Granted).To(BeTrue())
		}
		Expect(token.UseCount).To(Equal(int64(2)))
	})

	DescribeTable("reason messages",
		func(r access.Reason, msg string) {
			Expect(r.Message()).To(Equal(msg))
		},
		Entry("not found", access.ReasonNotFound, "Token not found"),
		Entry("revoked", access.ReasonRevoked, "Token has been revoked"),
		Entry("expired", access.ReasonExpired, "Token has expired"),
		Entry("limit", access.ReasonUsageLimitReached, "Token usage limit reached"),
		Entry("unavailable", access.ReasonPitchUnavailable, "This pitch is not available"),
	)
})
