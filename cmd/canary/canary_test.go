package canarycmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	canarycmder "github.com/arcanumlabs/canary/cmd/canary"
)

var _ = Describe("NewCanaryCmd", func() {
	It("creates the root command", func() {
		cmd := canarycmder.NewCanaryCmd()
		Expect(cmd.Use).To(Equal("canary"))
	})

	It("wires up every subcommand", func() {
		cmd := canarycmder.NewCanaryCmd()
		names := make([]string, 0)
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements(
			"agents",
			"deploy",
			"list",
			"evaluate",
			"promote",
			"rollback",
			"check-expired",
			"gates",
			"status",
			"config",
			"serve",
			"version",
		))
	})

	It("exposes the persistent debug and config-dir flags", func() {
		cmd := canarycmder.NewCanaryCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})
})
