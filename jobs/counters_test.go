package jobs_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/basit/pitchvault-backend/jobs"
	"github.com/basit/pitchvault-backend/models"
	"github.com/basit/pitchvault-backend/testutil"
)

var _ = Describe("counter reconciliation", func() {
	var (
		db    *gorm.DB
		pitch *models.Pitch
	)

	counters := func() (int64, int64) {
		var p models.Pitch
		Expect(db.First(&p, "id = ?", pitch.ID).Error).To(Succeed())
		return p.TotalViews, p.UniqueViews
	}

	BeforeEach(func() {
		var err error
		db, err = testutil.OpenDB(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			sqlDB, _ := db.DB()
			sqlDB.Close()
		})
		pitch, err = testutil.SeedPitch(db, true, models.FileTypeHTML, "index.html")
		Expect(err).NotTo(HaveOccurred())
		for _, ip := range []string{"1.1.1.1", "1.1.1.1", "2.2.2.2"} {
			Expect(db.Create(&models.ViewEvent{PitchID: pitch.ID, IPAddress: testutil.String(ip)}).Error).To(Succeed())
		}
		Expect(db.Model(pitch).UpdateColumns(map[string]any{"total_views": 99, "unique_views": 42}).Error).To(Succeed())
	})

	It("rewrites drifted counters from the events", func() {
		n, err := jobs.ReconcileAll(context.Background(), db)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		total, unique := counters()
		Expect(total).To(Equal(int64(3)))
		Expect(unique).To(Equal(int64(2)))
	})

	It("runs on a ticker until cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		DeferCleanup(cancel)
		jobs.StartCounterReconciler(ctx, db, 20*time.Millisecond, zap.NewNop())

		Eventually(func() int64 {
			total, _ := counters()
			return total
		}).WithTimeout(2 * time.Second).Should(Equal(int64(3)))
	})
})
