// Package main is the entry point for the cubesync binary.
package main

import (
	"os"

	cli "cube-sync/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
