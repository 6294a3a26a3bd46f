package main

import (
	"os"

	"github.com/galah-project/galah-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
