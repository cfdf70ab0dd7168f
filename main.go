// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for Opsvault.
//
// Usage:
//
//	go run . [flags]
//	./opsvault [flags]
//
// This launches the Opsvault CLI. See --help for options.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/opsvault/opsvault/ui/cli"
)

// version is set at build time using -ldflags, e.g.:
// go build -ldflags "-X main.version=1.2.3"
var version = "dev"

// main is the entrypoint for the Opsvault CLI.
func main() {
	if os.Getenv("OPSVAULT_SHOW_VERSION") == "1" {
		fmt.Fprintf(os.Stderr, "Opsvault version: %s\n", version)
	}

	if err := cli.Execute(); err != nil {
		log.Printf("Opsvault CLI error: %v", err)
		os.Exit(cli.ExitCode(err))
	}
}
