// Package main is the entry point for the sentinelctl CLI.
package main

import (
	"os"

	"github.com/bryanwahyu/logsentinel/cmd/sentinelctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
