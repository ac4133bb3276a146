// Package main provides the entry point for the agent-brain CLI.
package main

import (
	"os"

	"github.com/agent-brain/brain/cmd/agent-brain/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
