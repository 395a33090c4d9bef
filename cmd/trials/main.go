package main

import (
	"fmt"
	"os"

	"github.com/GoSim-25-26J-441/trial-harness/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
