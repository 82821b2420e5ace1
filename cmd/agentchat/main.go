// Package main provides the entry point for the agentchat CLI.
package main

import (
	"fmt"
	"os"

	"github.com/opencode-ai/agentchat/cmd/agentchat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
