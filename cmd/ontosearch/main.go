// Package main provides the entry point for the ontosearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/ontosearch/cmd/ontosearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
