package main

import (
	"os"

	"github.com/moolen/strato/cmd/strato/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
