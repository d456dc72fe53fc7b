package main

import (
	"os"

	"github.com/kavos113/quickfleet/fleetctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
