package main

import (
	"fmt"
	"os"

	"storefront/internal/cli"
	"storefront/internal/util"
)

func main() {
	os.Exit(run())
}

func run() int {
	defer util.SyncLogger()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
