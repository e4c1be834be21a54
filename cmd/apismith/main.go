package main

import (
	"os"

	"github.com/Sutto/api-smith/cmd/apismith/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
