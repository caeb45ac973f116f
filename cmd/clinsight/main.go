// clinsight is the command-line client for the ClinSight service.
package main

import (
	"fmt"
	"os"

	"github.com/scribemed/clinsight/internal/interfaces/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
