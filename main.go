package main

import (
	"os"

	"github.com/jon4hz/profilehub/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
