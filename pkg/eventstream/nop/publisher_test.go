package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arcanumlabs/canary/pkg/eventstream"
	"github.com/arcanumlabs/canary/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	It("creates a non-nil publisher", func() {
		p := nop.NewPublisher()
		Expect(p).NotTo(BeNil())
	})

	It("returns ErrNilDeploymentEvent for nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishDeployment(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilDeploymentEvent))
	})

	It("succeeds for non-nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishDeployment(context.Background(), &eventstream.DeploymentEvent{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("closes successfully", func() {
		p := nop.NewPublisher()
		Expect(p.Close()).To(Succeed())
	})
})
