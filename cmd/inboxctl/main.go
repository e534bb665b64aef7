package main

import (
	"fmt"
	"os"

	"github.com/matheus3301/inbox/internal/cli"
)

func main() {
	if err := cli.Root().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", cli.ErrorMessage(err))
		os.Exit(1)
	}
}
