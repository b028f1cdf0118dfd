// Package main is the entry point for the ezbridge development host.
// This is a thin wrapper around the cli package.
package main

import (
	"os"

	"github.com/zot/ezbridge/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
