package kafka_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcanumlabs/canary/pkg/eventstream"
	"github.com/arcanumlabs/canary/pkg/eventstream/kafka"
)

var _ = Describe("NewPublisher", func() {
	It("requires at least one broker", func() {
		_, err := kafka.NewPublisher(kafka.Config{Topic: "canary-deployments"})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("broker"))
	})

	It("requires a topic", func() {
		_, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("topic"))
	})

	It("constructs with brokers and topic", func() {
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: []string{"localhost:9092"},
			Topic:   "canary-deployments",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})
})

var _ = Describe("PublishDeployment", func() {
	It("rejects a nil event without touching the network", func() {
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: []string{"localhost:9092"},
			Topic:   "canary-deployments",
		})
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		err = p.PublishDeployment(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilDeploymentEvent))
	})
})

var _ = Describe("Close", func() {
	It("is safe on a nil publisher", func() {
		var p *kafka.Publisher
		Expect(p.Close()).To(Succeed())
	})
})
