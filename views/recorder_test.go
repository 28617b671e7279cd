package views_test

import (
	"context"
	"sync"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/basit/pitchvault-backend/access"
	"github.com/basit/pitchvault-backend/models"
	"github.com/basit/pitchvault-backend/testutil"
	"github.com/basit/pitchvault-backend/views"
)

var _ = Describe("Recorder", func() {
	var (
		db       *gorm.DB
		recorder *views.Recorder
		pitch    *models.Pitch
		ctx      context.Context
	)

	reloadPitch := func() *models.Pitch {
		var p models.Pitch
		Expect(db.First(&p, "id = ?", pitch.ID).Error).To(Succeed())
		return &p
	}

	reloadToken := func(id uuid.UUID) *models.AccessToken {
		var t models.AccessToken
		Expect(db.First(&t, "id = ?", id).Error).To(Succeed())
		return &t
	}

	countEvents := func() int64 {
		var n int64
		Expect(db.Model(&models.ViewEvent{}).Where("pitch_id = ?", pitch.ID).Count(&n).Error).To(Succeed())
		return n
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = testutil.OpenDB(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			sqlDB, _ := db.DB()
			sqlDB.Close()
		})
		recorder = views.NewRecorder(db, zap.NewNop())
		pitch, err = testutil.SeedPitch(db, true, models.FileTypeHTML, "index.html")
		Expect(err).NotTo(HaveOccurred())
	})

	It("exhausts a two-use token after two sessions", func() {
		tok, err := testutil.SeedToken(db, pitch.ID, func(t *models.AccessToken) {
			t.MaxUses = testutil.Int64(2)
		})
		Expect(err).NotTo(HaveOccurred())
		validator := access.NewValidator(access.NewTokenStore(db))

		for i := 0; i < 2; i++ {
			d, err := validator.Validate(ctx, tok.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Granted).To(BeTrue())
			_, err = recorder.RecordStart(ctx, views.StartParams{PitchID: pitch.ID, TokenID: &d.Token.ID})
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(reloadToken(tok.ID).UseCount).To(Equal(int64(2)))
		d, err := validator.Validate(ctx, tok.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Granted).To(BeFalse())
		Expect(d.Reason).To(Equal(access.ReasonUsageLimitReached))
	})

	It("counts total views and distinct IPs", func() {
		for _, ip := range []string{"1.1.1.1", "1.1.1.1", "2.2.2.2"} {
			_, err := recorder.RecordStart(ctx, views.StartParams{PitchID: pitch.ID, IPAddress: testutil.String(ip)})
			Expect(err).NotTo(HaveOccurred())
		}

		p := reloadPitch()
		Expect(p.TotalViews).To(Equal(int64(3)))
		Expect(p.UniqueViews).To(Equal(int64(2)))
	})

	It("does not count events without an IP as unique viewers", func() {
		_, err := recorder.RecordStart(ctx, views.StartParams{PitchID: pitch.ID})
		Expect(err).NotTo(HaveOccurred())

		p := reloadPitch()
		Expect(p.TotalViews).To(Equal(int64(1)))
		Expect(p.UniqueViews).To(BeZero())
	})

	Context("with a session id", func() {
		var tok *models.AccessToken

		BeforeEach(func() {
			var err error
			tok, err = testutil.SeedToken(db, pitch.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps start and end of one session in one event", func() {
			start := views.StartParams{PitchID: pitch.ID, TokenID: &tok.ID, SessionID: "s-1", IPAddress: testutil.String("1.1.1.1")}
			first, err := recorder.RecordStart(ctx, start)
			Expect(err).NotTo(HaveOccurred())

			ended, err := recorder.RecordEnd(ctx, views.EndParams{StartParams: start, Duration: 42})
			Expect(err).NotTo(HaveOccurred())
			Expect(ended.ID).To(Equal(first.ID))
			Expect(ended.Duration).NotTo(BeNil())
			Expect(*ended.Duration).To(Equal(int64(42)))

			Expect(countEvents()).To(Equal(int64(1)))
			Expect(reloadPitch().TotalViews).To(Equal(int64(1)))
			Expect(reloadToken(tok.ID).UseCount).To(Equal(int64(1)))
		})

		It("ignores a repeated start", func() {
			start := views.StartParams{PitchID: pitch.ID, TokenID: &tok.ID, SessionID: "s-2"}
			a, err := recorder.RecordStart(ctx, start)
			Expect(err).NotTo(HaveOccurred())
			b, err := recorder.RecordStart(ctx, start)
			Expect(err).NotTo(HaveOccurred())

			Expect(b.ID).To(Equal(a.ID))
			Expect(countEvents()).To(Equal(int64(1)))
			Expect(reloadToken(tok.ID).UseCount).To(Equal(int64(1)))
		})

		It("keeps the first duration", func() {
			start := views.StartParams{PitchID: pitch.ID, SessionID: "s-3"}
			_, err := recorder.RecordEnd(ctx, views.EndParams{StartParams: start, Duration: 10})
			Expect(err).NotTo(HaveOccurred())
			e, err := recorder.RecordEnd(ctx, views.EndParams{StartParams: start, Duration: 99})
			Expect(err).NotTo(HaveOccurred())

			Expect(*e.Duration).To(Equal(int64(10)))
			Expect(countEvents()).To(Equal(int64(1)))
		})

		It("creates the event when only the end signal arrives", func() {
			e, err := recorder.RecordEnd(ctx, views.EndParams{
				StartParams: views.StartParams{PitchID: pitch.ID, TokenID: &tok.ID, SessionID: "s-4"},
				Duration:    7,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(*e.Duration).To(Equal(int64(7)))
			Expect(reloadToken(tok.ID).UseCount).To(Equal(int64(1)))
			Expect(reloadPitch().TotalViews).To(Equal(int64(1)))
		})

		It("refuses a session id that belongs to another pitch", func() {
			other, err := testutil.SeedPitch(db, true, models.FileTypePDF, "a.pdf")
			Expect(err).NotTo(HaveOccurred())
			_, err = recorder.RecordStart(ctx, views.StartParams{PitchID: other.ID, SessionID: "shared"})
			Expect(err).NotTo(HaveOccurred())

			_, err = recorder.RecordStart(ctx, views.StartParams{PitchID: pitch.ID, SessionID: "shared"})
			Expect(err).To(MatchError(views.ErrTokenMismatch))
		})
	})

	It("records start and end separately without a session id", func() {
		start := views.StartParams{PitchID: pitch.ID}
		_, err := recorder.RecordStart(ctx, start)
		Expect(err).NotTo(HaveOccurred())
		_, err = recorder.RecordEnd(ctx, views.EndParams{StartParams: start, Duration: 5})
		Expect(err).NotTo(HaveOccurred())

		Expect(countEvents()).To(Equal(int64(2)))
	})

	It("rejects tokens of another pitch", func() {
		other, err := testutil.SeedPitch(db, true, models.FileTypePDF, "a.pdf")
		Expect(err).NotTo(HaveOccurred())
		tok, err := testutil.SeedToken(db, other.ID)
		Expect(err).NotTo(HaveOccurred())

		_, err = recorder.RecordStart(ctx, views.StartParams{PitchID: pitch.ID, TokenID: &tok.ID})
		Expect(err).To(MatchError(views.ErrTokenMismatch))
		Expect(countEvents()).To(BeZero())
		Expect(reloadToken(tok.ID).UseCount).To(BeZero())
	})

	It("rejects unknown pitches and negative durations", func() {
		_, err := recorder.RecordStart(ctx, views.StartParams{PitchID: uuid.New()})
		Expect(err).To(MatchError(views.ErrPitchNotFound))

		_, err = recorder.RecordEnd(ctx, views.EndParams{StartParams: views.StartParams{PitchID: pitch.ID}, Duration: -1})
		Expect(err).To(MatchError(views.ErrInvalidDuration))
	})

	It("loses no increments under concurrent sessions", func() {
		tok, err := testutil.SeedToken(db, pitch.ID)
		Expect(err).NotTo(HaveOccurred())

		const sessions = 25
		var wg sync.WaitGroup
		errs := make(chan error, sessions)
		for i := 0; i < sessions; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer GinkgoRecover()
				ip := "10.0.0." + string(rune('a'+i%5))
				_, err := recorder.RecordStart(ctx, views.StartParams{
					PitchID:   pitch.ID,
					TokenID:   &tok.ID,
					SessionID: uuid.NewString(),
					IPAddress: &ip,
				})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(reloadToken(tok.ID).UseCount).To(Equal(int64(sessions)))
		p := reloadPitch()
		Expect(p.TotalViews).To(Equal(int64(sessions)))
		Expect(p.UniqueViews).To(Equal(int64(5)))
	})
})
