package agentspec_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcanumlabs/canary/pkg/agentspec"
	"github.com/arcanumlabs/canary/pkg/gate"
)

func validSpec() *agentspec.AgentSpec {
	return &agentspec.AgentSpec{
		Name:     "triage",
		Provider: "anthropic",
		Model:    "claude-sonnet-4-5",
		Purpose:  "triage incoming tickets",
		Version:  "1.2.0",
		SLO: agentspec.SLO{
			LatencyP95Ms:        2000,
			SuccessRate:         0.95,
			MaxCostCentsPerHour: 100,
		},
	}
}

var _ = Describe("Validate", func() {
	It("passes a well-formed spec", func() {
		v := agentspec.Validate(validSpec())
		Expect(v.Passed).To(BeTrue())
	})

	It("reports every missing field at once", func() {
		v := agentspec.Validate(&agentspec.AgentSpec{})
		Expect(v.Passed).To(BeFalse())

		var messages []string
		for _, r := range v.Reasons {
			Expect(r.Kind).To(Equal(gate.KindSchemaViolation))
			messages = append(messages, r.Message)
		}
		Expect(messages).To(ContainElement(ContainSubstring("name")))
		Expect(messages).To(ContainElement(ContainSubstring("provider")))
		Expect(messages).To(ContainElement(ContainSubstring("model")))
		Expect(messages).To(ContainElement(ContainSubstring("purpose")))
		Expect(messages).To(ContainElement(ContainSubstring("version")))
	})

	DescribeTable("version format",
		func(version string, ok bool) {
			spec := validSpec()
			spec.Version = version
			Expect(agentspec.Validate(spec).Passed).To(Equal(ok))
		},
		Entry("plain semver", "1.0.0", true),
		Entry("multi-digit", "10.23.4", true),
		Entry("two segments", "1.0", false),
		Entry("four segments", "1.0.0.0", false),
		Entry("non-numeric", "1.0.x", false),
		Entry("v-prefixed", "v1.0.0", false),
	)

	It("rejects out-of-range SLO values", func() {
		spec := validSpec()
		spec.SLO.LatencyP95Ms = 0
		spec.SLO.SuccessRate = 1.5
		spec.SLO.MaxCostCentsPerHour = -1

		v := agentspec.Validate(spec)
		Expect(v.Passed).To(BeFalse())
		Expect(v.Reasons).To(HaveLen(3))
	})

	It("flags unset security assertions", func() {
		spec := validSpec()
		spec.Security = map[string]bool{
			"no_pii_logging":  true,
			"prompt_reviewed": false,
		}

		v := agentspec.Validate(spec)
		Expect(v.Passed).To(BeFalse())
		Expect(v.Reasons).To(HaveLen(1))
		Expect(v.Reasons[0].Kind).To(Equal(gate.KindSecurityViolation))
		Expect(v.Reasons[0].Message).To(ContainSubstring("prompt_reviewed"))
	})
})

var _ = Describe("SecurityFindings", func() {
	It("flags hardcoded credential patterns", func() {
		raw := []byte("name: triage\napi_key: sk-abc123\n")
		findings := agentspec.SecurityFindings(raw)
		Expect(findings).NotTo(BeEmpty())
		Expect(findings[0]).To(ContainSubstring("line 2"))
	})

	It("skips comments and env-var placeholders", func() {
		raw := []byte("# api_key: sk-real-key\napi_key: ${OPENAI_API_KEY}\n")
		Expect(agentspec.SecurityFindings(raw)).To(BeEmpty())
	})

	It("returns nothing for clean content", func() {
		raw := []byte("name: triage\nmodel: gpt-5\n")
		Expect(agentspec.SecurityFindings(raw)).To(BeEmpty())
	})
})

var _ = Describe("Thresholds", func() {
	It("applies the default regression tolerance when unset", func() {
		th := validSpec().Thresholds()
		Expect(th.RegressionTolerance).To(Equal(agentspec.DefaultRegressionTolerance))
	})

	It("keeps an explicit regression tolerance", func() {
		spec := validSpec()
		spec.SLO.RegressionTolerance = 0.1
		Expect(spec.Thresholds().RegressionTolerance).To(Equal(0.1))
	})
})

var _ = Describe("Hash", func() {
	It("is stable for equal specs and differs across changes", func() {
		a := validSpec()
		b := validSpec()
		Expect(a.Hash()).To(Equal(b.Hash()))
		Expect(a.Hash()).To(HaveLen(12))

		b.Model = "gpt-5-mini"
		Expect(a.Hash()).NotTo(Equal(b.Hash()))
	})
})
