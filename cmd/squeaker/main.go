package main

import (
	"os"

	"github.com/squeaker/squeaker/cmd/squeaker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
