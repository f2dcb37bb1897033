// Package main provides the entry point for the retrievald service.
package main

import (
	"os"

	"github.com/civicmesh/retrieval/cmd/retrievald/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
