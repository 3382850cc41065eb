// Command fencecheck confirms GPU fence advisories across program inputs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/fencecheck/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
