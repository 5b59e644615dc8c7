// Package main provides the lumen CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/lumen/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
