package main

import (
	"os"

	"github.com/waspsec/wasp/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
