// Command showrunner runs the live show timing runtime.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/showrunner/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
