package canary_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/arcanumlabs/canary/pkg/agentspec"
	"github.com/arcanumlabs/canary/pkg/canary"
	"github.com/arcanumlabs/canary/pkg/metrics"
	"github.com/arcanumlabs/canary/pkg/storage/inmemory"
)

var _ = Describe("Metrics", func() {
	It("counts lifecycle activity through the manager", func() {
		specDir, err := os.MkdirTemp("", "canary-metrics-test-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(specDir)

		err = os.WriteFile(filepath.Join(specDir, "triage.yaml"), []byte(triageSpec), 0o600)
		Expect(err).NotTo(HaveOccurred())

		accessor := metrics.NewStaticAccessor()
		accessor.Set("triage", metrics.VariantCanary, metrics.Snapshot{
			Count:          200,
			SuccessRate:    0.99,
			P95LatencyMs:   500,
			CostCentsTotal: 10,
		})
		accessor.Set("triage", metrics.VariantBaseline, metrics.Snapshot{
			Count:          200,
			SuccessRate:    0.99,
			P95LatencyMs:   500,
			CostCentsTotal: 10,
		})

		registry := prometheus.NewRegistry()
		collectors := canary.NewMetrics(registry)

		manager, err := canary.NewManager(&canary.Config{
			Driver:   inmemory.NewDriver(),
			Specs:    agentspec.NewStore(specDir),
			Accessor: accessor,
			Window:   time.Hour,
			Metrics:  collectors,
		})
		Expect(err).NotTo(HaveOccurred())

		ctx := context.Background()
		rec, err := manager.Create(ctx, "triage", []byte(triageCanaryConfig), canary.CreateOptions{})
		Expect(err).NotTo(HaveOccurred())

		_, err = manager.Evaluate(ctx, rec.ID)
		Expect(err).NotTo(HaveOccurred())

		_, err = manager.Promote(ctx, rec.ID)
		Expect(err).NotTo(HaveOccurred())

		Expect(testutil.ToFloat64(collectors.DeploymentsCreated)).To(Equal(1.0))
		Expect(testutil.ToFloat64(collectors.Promotions)).To(Equal(1.0))
		Expect(testutil.ToFloat64(collectors.Evaluations.WithLabelValues("pass"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(collectors.Rollbacks)).To(BeZero())
	})

	It("tolerates a nil collector bundle", func() {
		var collectors *canary.Metrics

		specDir, err := os.MkdirTemp("", "canary-nilmetrics-test-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(specDir)

		err = os.WriteFile(filepath.Join(specDir, "triage.yaml"), []byte(triageSpec), 0o600)
		Expect(err).NotTo(HaveOccurred())

		accessor := metrics.NewStaticAccessor()
		accessor.Set("triage", metrics.VariantCanary, metrics.Snapshot{
			Count:       200,
			SuccessRate: 0.99,
		})

		manager, err := canary.NewManager(&canary.Config{
			Driver:   inmemory.NewDriver(),
			Specs:    agentspec.NewStore(specDir),
			Accessor: accessor,
			Metrics:  collectors,
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = manager.Create(context.Background(), "triage", []byte(triageCanaryConfig), canary.CreateOptions{})
		Expect(err).NotTo(HaveOccurred())
	})
})
