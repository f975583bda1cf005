package main

import (
	"os"

	"bruna/cmd/bruna/commands"
)

func main() {
	// Errors are printed by the printer package before they reach here.
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
