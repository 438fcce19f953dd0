// Command mlauncher runs launch attempts and the bridge host from a terminal.
package main

import (
	"fmt"
	"os"

	"mlauncher/internal/cli"
)

func main() {
	rootCmd := cli.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
