package metrics_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcanumlabs/canary/pkg/metrics"
)

var _ = Describe("StaticAccessor", func() {
	var accessor *metrics.StaticAccessor

	BeforeEach(func() {
		accessor = metrics.NewStaticAccessor()
	})

	It("returns the zero-sample sentinel for unknown agents", func() {
		snap, err := accessor.Query(context.Background(), "ghost", metrics.VariantCanary, time.Hour)
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Count).To(BeZero())
		Expect(snap.Window).To(Equal(time.Hour))
	})

	It("returns the registered snapshot for a pair", func() {
		accessor.Set("triage", metrics.VariantCanary, metrics.Snapshot{
			Count:          120,
			SuccessRate:    0.97,
			P95LatencyMs:   640,
			CostCentsTotal: 12,
		})

		snap, err := accessor.Query(context.Background(), "triage", metrics.VariantCanary, time.Hour)
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Count).To(Equal(int64(120)))
		Expect(snap.SuccessRate).To(Equal(0.97))
		Expect(snap.Window).To(Equal(time.Hour))
	})

	It("keeps baseline and canary variants separate", func() {
		accessor.Set("triage", metrics.VariantBaseline, metrics.Snapshot{Count: 1000})
		accessor.Set("triage", metrics.VariantCanary, metrics.Snapshot{Count: 50})

		baseline, err := accessor.Query(context.Background(), "triage", metrics.VariantBaseline, time.Hour)
		Expect(err).NotTo(HaveOccurred())
		canary, err := accessor.Query(context.Background(), "triage", metrics.VariantCanary, time.Hour)
		Expect(err).NotTo(HaveOccurred())

		Expect(baseline.Count).To(Equal(int64(1000)))
		Expect(canary.Count).To(Equal(int64(50)))
	})

	It("preserves an explicitly set window", func() {
		accessor.Set("triage", metrics.VariantCanary, metrics.Snapshot{
			Count:  10,
			Window: 30 * time.Minute,
		})

		snap, err := accessor.Query(context.Background(), "triage", metrics.VariantCanary, time.Hour)
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Window).To(Equal(30 * time.Minute))
	})
})

var _ = Describe("Snapshot", func() {
	It("floors the window at one minute for cost math", func() {
		snap := metrics.Snapshot{Window: 0}
		Expect(snap.WindowHours()).To(BeNumerically("~", 1.0/60, 1e-9))

		snap.Window = 2 * time.Hour
		Expect(snap.WindowHours()).To(Equal(2.0))
	})
})
