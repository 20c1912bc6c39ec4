package sqlite_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcanumlabs/canary/pkg/deployment"
	"github.com/arcanumlabs/canary/pkg/storage"
	"github.com/arcanumlabs/canary/pkg/storage/sqlite"
)

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		dir    string
		dbPath string
		driver *sqlite.Driver
	)

	newRecord := func(agent string) *deployment.Record {
		rec := deployment.New(agent, []byte("model: gpt-5\n"), 10, 4*time.Hour, 50)
		rec.State = deployment.StateActive
		return rec
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		dir, err = os.MkdirTemp("", "sqlite-test-*")
		Expect(err).NotTo(HaveOccurred())
		dbPath = filepath.Join(dir, "canary.sqlite")

		driver, err = sqlite.NewDriver(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		driver.Close()
		os.RemoveAll(dir)
	})

	Describe("Create and Get", func() {
		It("round-trips a record with its decision log", func() {
			rec := newRecord("triage")
			rec.AppendDecision(deployment.VerdictPass, "all gates passed")
			Expect(driver.Create(ctx, rec)).To(Succeed())

			got, err := driver.Get(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.AgentName).To(Equal("triage"))
			Expect(got.State).To(Equal(deployment.StateActive))
			Expect(got.CanaryConfig).To(Equal([]byte("model: gpt-5\n")))
			Expect(got.TrafficSplitPercent).To(Equal(10))
			Expect(got.MinSampleSize).To(Equal(int64(50)))
			Expect(got.DecisionLog).To(HaveLen(1))
			Expect(got.DecisionLog[0].Verdict).To(Equal(deployment.VerdictPass))
			Expect(got.CreatedAt.Unix()).To(Equal(rec.CreatedAt.Unix()))
		})

		It("returns NotFoundError for unknown ids", func() {
			_, err := driver.Get(ctx, "nope")

			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})

		It("rejects a second live deployment for the same agent", func() {
			first := newRecord("triage")
			Expect(driver.Create(ctx, first)).To(Succeed())

			err := driver.Create(ctx, newRecord("triage"))

			var conflict storage.ConflictError
			Expect(errors.As(err, &conflict)).To(BeTrue())
			Expect(conflict.ExistingID).To(Equal(first.ID))
		})

		It("allows a new deployment once the previous one is terminal", func() {
			first := newRecord("triage")
			first.State = deployment.StateExpired
			Expect(driver.Create(ctx, first)).To(Succeed())

			Expect(driver.Create(ctx, newRecord("triage"))).To(Succeed())
		})

		It("survives a close and reopen", func() {
			rec := newRecord("triage")
			Expect(driver.Create(ctx, rec)).To(Succeed())
			Expect(driver.Close()).To(Succeed())

			reopened, err := sqlite.NewDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			got, err := reopened.Get(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.AgentName).To(Equal("triage"))
		})
	})

	Describe("Update", func() {
		It("persists mutations transactionally", func() {
			rec := newRecord("triage")
			Expect(driver.Create(ctx, rec)).To(Succeed())

			updated, err := driver.Update(ctx, rec.ID, func(r *deployment.Record) error {
				r.State = deployment.StateRollingBack
				r.AppendDecision(deployment.VerdictFail, "latency over threshold")
				r.LastEvaluatedAt = time.Now().UTC()
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.State).To(Equal(deployment.StateRollingBack))

			got, err := driver.Get(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.State).To(Equal(deployment.StateRollingBack))
			Expect(got.DecisionLog).To(HaveLen(1))
			Expect(got.LastEvaluatedAt).NotTo(BeZero())
		})

		It("rolls back when mutate fails", func() {
			rec := newRecord("triage")
			Expect(driver.Create(ctx, rec)).To(Succeed())

			boom := errors.New("boom")
			_, err := driver.Update(ctx, rec.ID, func(r *deployment.Record) error {
				r.State = deployment.StateExpired
				return boom
			})
			Expect(err).To(MatchError(boom))

			got, err := driver.Get(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.State).To(Equal(deployment.StateActive))
		})

		It("returns NotFoundError for unknown ids", func() {
			_, err := driver.Update(ctx, "nope", func(r *deployment.Record) error {
				return nil
			})

			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})

	Describe("List", func() {
		It("orders newest first and honors filters", func() {
			a := newRecord("triage")
			a.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
			b := newRecord("scribe")
			b.CreatedAt = time.Now().UTC().Add(-time.Hour)
			c := newRecord("scribe")
			c.State = deployment.StateRolledBack
			c.CreatedAt = time.Now().UTC()

			for _, rec := range []*deployment.Record{a, b, c} {
				Expect(driver.Create(ctx, rec)).To(Succeed())
			}

			all, err := driver.List(ctx, storage.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
			Expect(all[0].ID).To(Equal(c.ID))
			Expect(all[2].ID).To(Equal(a.ID))

			active, err := driver.List(ctx, storage.Filter{State: deployment.StateActive})
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(2))

			scribe, err := driver.List(ctx, storage.Filter{AgentName: "scribe", State: deployment.StateActive})
			Expect(err).NotTo(HaveOccurred())
			Expect(scribe).To(HaveLen(1))
			Expect(scribe[0].ID).To(Equal(b.ID))
		})
	})

	Describe("ActiveByAgent", func() {
		It("returns the agent's active record or NotFoundError", func() {
			rec := newRecord("triage")
			Expect(driver.Create(ctx, rec)).To(Succeed())

			got, err := driver.ActiveByAgent(ctx, "triage")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(rec.ID))

			_, err = driver.ActiveByAgent(ctx, "ghost")

			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})

	Describe("baselines", func() {
		It("round-trips and overwrites per agent", func() {
			Expect(driver.SetBaseline(ctx, "triage", []byte("v1"))).To(Succeed())
			Expect(driver.SetBaseline(ctx, "triage", []byte("v2"))).To(Succeed())

			config, err := driver.GetBaseline(ctx, "triage")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(config)).To(Equal("v2"))

			_, err = driver.GetBaseline(ctx, "ghost")

			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})
})
