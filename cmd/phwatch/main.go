package main

import (
	"os"

	"github.com/wonny/phwatch/cmd/phwatch/commands"
)

// main is the entry point for the phwatch CLI
// ⭐ Single CLI entry point: go run ./cmd/phwatch [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
