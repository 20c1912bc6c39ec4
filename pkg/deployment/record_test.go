package deployment_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcanumlabs/canary/pkg/deployment"
)

var _ = Describe("Record", func() {
	newRecord := func() *deployment.Record {
		return deployment.New("triage", []byte("model: gpt-5\n"), 10, 4*time.Hour, 50)
	}

	Describe("New", func() {
		It("creates a pending record with a unique id", func() {
			a := newRecord()
			b := newRecord()

			Expect(a.ID).NotTo(BeEmpty())
			Expect(a.ID).NotTo(Equal(b.ID))
			Expect(a.State).To(Equal(deployment.StatePending))
			Expect(a.AgentName).To(Equal("triage"))
			Expect(a.TrafficSplitPercent).To(Equal(10))
			Expect(a.MinSampleSize).To(Equal(int64(50)))
			Expect(a.DecisionLog).To(BeEmpty())
		})

		It("sets expiry relative to creation", func() {
			rec := newRecord()
			Expect(rec.ExpiresAt.Sub(rec.CreatedAt)).To(Equal(4 * time.Hour))
		})

		It("honors a zero duration as expiring immediately", func() {
			rec := deployment.New("triage", nil, 10, 0, 50)
			Expect(rec.Expired(time.Now().UTC())).To(BeTrue())
		})
	})

	Describe("Expired", func() {
		It("is false before the deadline and true at or after it", func() {
			rec := newRecord()
			Expect(rec.Expired(rec.ExpiresAt.Add(-time.Second))).To(BeFalse())
			Expect(rec.Expired(rec.ExpiresAt)).To(BeTrue())
			Expect(rec.Expired(rec.ExpiresAt.Add(time.Second))).To(BeTrue())
		})
	})

	Describe("state machine", func() {
		DescribeTable("CanTransition",
			func(from, to deployment.State, want bool) {
				rec := newRecord()
				rec.State = from
				Expect(rec.CanTransition(to)).To(Equal(want))
			},
			Entry("pending to active", deployment.StatePending, deployment.StateActive, true),
			Entry("pending to promoted", deployment.StatePending, deployment.StatePromoted, false),
			Entry("active to promoting", deployment.StateActive, deployment.StatePromoting, true),
			Entry("active to rolling back", deployment.StateActive, deployment.StateRollingBack, true),
			Entry("active to expired", deployment.StateActive, deployment.StateExpired, true),
			Entry("active straight to promoted", deployment.StateActive, deployment.StatePromoted, false),
			Entry("promoting to promoted", deployment.StatePromoting, deployment.StatePromoted, true),
			Entry("promoting to rolling back", deployment.StatePromoting, deployment.StateRollingBack, true),
			Entry("rolling back to rolled back", deployment.StateRollingBack, deployment.StateRolledBack, true),
			Entry("promoted to anything", deployment.StatePromoted, deployment.StateActive, false),
			Entry("rolled back to anything", deployment.StateRolledBack, deployment.StateActive, false),
			Entry("expired to anything", deployment.StateExpired, deployment.StateActive, false),
		)

		It("marks exactly the terminal states terminal", func() {
			Expect(deployment.StatePromoted.Terminal()).To(BeTrue())
			Expect(deployment.StateRolledBack.Terminal()).To(BeTrue())
			Expect(deployment.StateExpired.Terminal()).To(BeTrue())

			Expect(deployment.StatePending.Terminal()).To(BeFalse())
			Expect(deployment.StateActive.Terminal()).To(BeFalse())
			Expect(deployment.StatePromoting.Terminal()).To(BeFalse())
			Expect(deployment.StateRollingBack.Terminal()).To(BeFalse())
		})
	})

	Describe("decision log", func() {
		It("appends entries in order with timestamps", func() {
			rec := newRecord()
			rec.AppendDecision(deployment.VerdictPass, "all gates passed")
			rec.AppendDecision("", "promoted to baseline")

			Expect(rec.DecisionLog).To(HaveLen(2))
			Expect(rec.DecisionLog[0].Verdict).To(Equal(deployment.VerdictPass))
			Expect(rec.DecisionLog[1].Verdict).To(BeEmpty())
			Expect(rec.DecisionLog[0].Timestamp).NotTo(BeZero())
		})

		It("records the sample size on evaluation entries", func() {
			rec := newRecord()
			rec.AppendEvaluation(deployment.VerdictPass, "all gates passed", 150)
			rec.AppendDecision("", "promoted to baseline")

			Expect(rec.LastVerdict().SampleSize).To(Equal(int64(150)))
			Expect(rec.LastDecision().SampleSize).To(BeZero())
		})

		It("LastVerdict skips lifecycle entries without a verdict", func() {
			rec := newRecord()
			Expect(rec.LastVerdict()).To(BeNil())

			rec.AppendDecision(deployment.VerdictFail, "latency over threshold")
			rec.AppendDecision("", "manual rollback")

			last := rec.LastVerdict()
			Expect(last).NotTo(BeNil())
			Expect(last.Verdict).To(Equal(deployment.VerdictFail))
		})

		It("LastDecision returns the newest entry", func() {
			rec := newRecord()
			Expect(rec.LastDecision()).To(BeNil())

			rec.AppendDecision(deployment.VerdictPass, "first")
			rec.AppendDecision("", "second")
			Expect(rec.LastDecision().Reason).To(Equal("second"))
		})
	})

	Describe("Clone", func() {
		It("isolates the copy from the original's slices", func() {
			rec := newRecord()
			rec.AppendDecision(deployment.VerdictPass, "ok")

			clone := rec.Clone()
			clone.CanaryConfig[0] = 'X'
			clone.AppendDecision(deployment.VerdictFail, "mutated")
			clone.State = deployment.StateActive

			Expect(rec.CanaryConfig[0]).To(Equal(byte('m')))
			Expect(rec.DecisionLog).To(HaveLen(1))
			Expect(rec.State).To(Equal(deployment.StatePending))
		})
	})
})
