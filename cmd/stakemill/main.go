package main

import (
	"os"

	"github.com/stakemill/stakemill/cmd/stakemill/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
