package main

import (
	"os"

	"github.com/spf13/afero"

	"placement/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand(afero.NewOsFs(), os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
