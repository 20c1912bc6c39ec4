package inmemory_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcanumlabs/canary/pkg/deployment"
	"github.com/arcanumlabs/canary/pkg/storage"
	"github.com/arcanumlabs/canary/pkg/storage/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
	)

	newRecord := func(agent string) *deployment.Record {
		rec := deployment.New(agent, []byte("model: gpt-5\n"), 10, 4*time.Hour, 50)
		rec.State = deployment.StateActive
		return rec
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
	})

	Describe("Create", func() {
		It("stores a record retrievable by id", func() {
			rec := newRecord("triage")
			Expect(driver.Create(ctx, rec)).To(Succeed())

			got, err := driver.Get(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.AgentName).To(Equal("triage"))
		})

		It("rejects a second live deployment for the same agent", func() {
			first := newRecord("triage")
			Expect(driver.Create(ctx, first)).To(Succeed())

			err := driver.Create(ctx, newRecord("triage"))

			var conflict storage.ConflictError
			Expect(errors.As(err, &conflict)).To(BeTrue())
			Expect(conflict.AgentName).To(Equal("triage"))
			Expect(conflict.ExistingID).To(Equal(first.ID))
		})

		It("allows a new deployment once the previous one is terminal", func() {
			first := newRecord("triage")
			first.State = deployment.StateRolledBack
			Expect(driver.Create(ctx, first)).To(Succeed())

			Expect(driver.Create(ctx, newRecord("triage"))).To(Succeed())
		})

		It("does not conflict across agents", func() {
			Expect(driver.Create(ctx, newRecord("triage"))).To(Succeed())
			Expect(driver.Create(ctx, newRecord("scribe"))).To(Succeed())
		})

		It("admits exactly one winner under concurrent creates", func() {
			var wg sync.WaitGroup
			errs := make([]error, 16)

			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs[i] = driver.Create(ctx, newRecord("triage"))
				}(i)
			}
			wg.Wait()

			var created int
			for _, err := range errs {
				if err == nil {
					created++
					continue
				}
				var conflict storage.ConflictError
				Expect(errors.As(err, &conflict)).To(BeTrue())
			}
			Expect(created).To(Equal(1))
		})

		It("isolates stored state from later caller mutations", func() {
			rec := newRecord("triage")
			Expect(driver.Create(ctx, rec)).To(Succeed())

			rec.AppendDecision(deployment.VerdictFail, "mutated after store")

			got, err := driver.Get(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.DecisionLog).To(BeEmpty())
		})
	})

	Describe("Get", func() {
		It("returns NotFoundError for unknown ids", func() {
			_, err := driver.Get(ctx, "nope")

			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})

	Describe("Update", func() {
		It("persists the mutated record and returns it", func() {
			rec := newRecord("triage")
			Expect(driver.Create(ctx, rec)).To(Succeed())

			updated, err := driver.Update(ctx, rec.ID, func(r *deployment.Record) error {
				r.State = deployment.StatePromoting
				r.AppendDecision(deployment.VerdictPass, "all gates passed")
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.State).To(Equal(deployment.StatePromoting))

			got, err := driver.Get(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.State).To(Equal(deployment.StatePromoting))
			Expect(got.DecisionLog).To(HaveLen(1))
		})

		It("leaves the record untouched when mutate fails", func() {
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

		It("serializes concurrent read-modify-write cycles", func() {
			rec := newRecord("triage")
			Expect(driver.Create(ctx, rec)).To(Succeed())

			var wg sync.WaitGroup
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := driver.Update(ctx, rec.ID, func(r *deployment.Record) error {
						r.AppendDecision("", "tick")
						return nil
					})
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			got, err := driver.Get(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.DecisionLog).To(HaveLen(32))
		})
	})

	Describe("List", func() {
		It("returns newest first and honors filters", func() {
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

			scribe, err := driver.List(ctx, storage.Filter{AgentName: "scribe"})
			Expect(err).NotTo(HaveOccurred())
			Expect(scribe).To(HaveLen(2))
		})
	})

	Describe("ActiveByAgent", func() {
		It("returns the agent's active record", func() {
			rec := newRecord("triage")
			Expect(driver.Create(ctx, rec)).To(Succeed())

			got, err := driver.ActiveByAgent(ctx, "triage")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(rec.ID))
		})

		It("returns NotFoundError when nothing is active", func() {
			rec := newRecord("triage")
			rec.State = deployment.StateExpired
			Expect(driver.Create(ctx, rec)).To(Succeed())

			_, err := driver.ActiveByAgent(ctx, "triage")

			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})

	Describe("baselines", func() {
		It("round-trips a baseline per agent", func() {
			Expect(driver.SetBaseline(ctx, "triage", []byte("model: gpt-5\n"))).To(Succeed())

			config, err := driver.GetBaseline(ctx, "triage")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(config)).To(Equal("model: gpt-5\n"))
		})

		It("overwrites on re-promotion", func() {
			Expect(driver.SetBaseline(ctx, "triage", []byte("v1"))).To(Succeed())
			Expect(driver.SetBaseline(ctx, "triage", []byte("v2"))).To(Succeed())

			config, err := driver.GetBaseline(ctx, "triage")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(config)).To(Equal("v2"))
		})

		It("returns NotFoundError for never-promoted agents", func() {
			_, err := driver.GetBaseline(ctx, "ghost")

			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})
})
