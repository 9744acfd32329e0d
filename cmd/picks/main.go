package main

import (
	"os"

	"github.com/wonny/kabupicks/cmd/picks/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
