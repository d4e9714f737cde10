// Package main provides the ledgerlens CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/ledgerlens/internal/cli"

	// Register providers.
	_ "github.com/leapstack-labs/ledgerlens/pkg/providers/anthropic"
	_ "github.com/leapstack-labs/ledgerlens/pkg/providers/compat"
	_ "github.com/leapstack-labs/ledgerlens/pkg/providers/echo"
	_ "github.com/leapstack-labs/ledgerlens/pkg/providers/gemini"
	_ "github.com/leapstack-labs/ledgerlens/pkg/providers/openai"
)

// Set by the release build via -ldflags.
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	if version != "" {
		cli.Version = version
	}
	if commit != "" {
		cli.GitCommit = commit
	}
	if date != "" {
		cli.BuildDate = date
	}
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
