// Package main is the entry point for the leadctl CLI.
// leadctl is the operator terminal tool for interacting with the leadrunner API.
package main

import (
	"leadrunner/cmd/cli/cmd"
	"os"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
