package main

import (
	"os"

	canarycmder "github.com/arcanumlabs/canary/cmd/canary"
)

func main() {
	cmd := canarycmder.NewCanaryCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
