package metrics_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcanumlabs/canary/pkg/metrics"
)

type promRule struct {
	needle string
	value  string
}

// promHandler fakes the Prometheus instant-query API, dispatching canned
// scalar values by first matching substring of the PromQL expression.
func promHandler(rules []promRule) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")

		for _, rule := range rules {
			if strings.Contains(query, rule.needle) {
				fmt.Fprintf(w,
					`{"status":"success","data":{"result":[{"value":[0,%q]}]}}`, rule.value)
				return
			}
		}

		// empty result set, like a counter that never incremented
		fmt.Fprint(w, `{"status":"success","data":{"result":[]}}`)
	}
}

var _ = Describe("PromAccessor", func() {
	var server *httptest.Server

	AfterEach(func() {
		if server != nil {
			server.Close()
		}
	})

	It("aggregates count, success rate, latency, and cost", func() {
		server = httptest.NewServer(promHandler([]promRule{
			{needle: `status="success"`, value: "95"},
			{needle: "agent_requests_total", value: "100"},
			{needle: "histogram_quantile", value: "0.75"},
			{needle: "agent_cost_cents_total", value: "42.5"},
		}))

		accessor := metrics.NewPromAccessor(server.URL)
		snap, err := accessor.Query(context.Background(), "triage", metrics.VariantCanary, time.Hour)
		Expect(err).NotTo(HaveOccurred())

		Expect(snap.Count).To(Equal(int64(100)))
		Expect(snap.SuccessRate).To(BeNumerically("~", 0.95, 1e-9))
		Expect(snap.P95LatencyMs).To(BeNumerically("~", 750, 1e-9))
		Expect(snap.CostCentsTotal).To(BeNumerically("~", 42.5, 1e-9))
		Expect(snap.Window).To(Equal(time.Hour))
	})

	It("returns the zero-sample sentinel without further queries when count is zero", func() {
		var calls int
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			fmt.Fprint(w, `{"status":"success","data":{"result":[]}}`)
		}))

		accessor := metrics.NewPromAccessor(server.URL)
		snap, err := accessor.Query(context.Background(), "triage", metrics.VariantCanary, time.Hour)
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Count).To(BeZero())
		Expect(calls).To(Equal(1))
	})

	It("treats NaN quantiles as zero", func() {
		server = httptest.NewServer(promHandler([]promRule{
			{needle: `status="success"`, value: "10"},
			{needle: "agent_requests_total", value: "10"},
			{needle: "histogram_quantile", value: "NaN"},
			{needle: "agent_cost_cents_total", value: "1"},
		}))

		accessor := metrics.NewPromAccessor(server.URL)
		snap, err := accessor.Query(context.Background(), "triage", metrics.VariantBaseline, time.Hour)
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.P95LatencyMs).To(BeZero())
	})

	It("propagates non-200 responses as errors", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))

		accessor := metrics.NewPromAccessor(server.URL)
		_, err := accessor.Query(context.Background(), "triage", metrics.VariantCanary, time.Hour)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("500"))
	})

	It("propagates failed query statuses as errors", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"error","data":{"result":[]}}`)
		}))

		accessor := metrics.NewPromAccessor(server.URL)
		_, err := accessor.Query(context.Background(), "triage", metrics.VariantCanary, time.Hour)
		Expect(err).To(HaveOccurred())
	})
})
