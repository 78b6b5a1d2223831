package main

import (
	_ "embed"
	"strings"

	"github.com/seentics/seentics-go/internal/cli"
	"github.com/seentics/seentics-go/internal/logging"
)

//go:embed VERSION
var versionFile string

var executeCLI = cli.Execute

func run() error {
	version := strings.TrimSpace(versionFile)
	return executeCLI(version)
}

func main() {
	if err := run(); err != nil {
		logging.Fatal("seentics execution failed", "error", err)
	}
}
