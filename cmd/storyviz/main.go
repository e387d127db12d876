// Command storyviz validates, renders and inspects algorithm storyboards.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/storyviz/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
