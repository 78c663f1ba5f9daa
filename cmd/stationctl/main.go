package main

import (
	"os"

	"medirelay/go-station/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
