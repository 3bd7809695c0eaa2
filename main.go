// ABOUTME: Entry point for the cellsync service and CLI
// ABOUTME: Hands control to the cobra command tree
package main

import (
	"fmt"
	"os"

	"github.com/harperreed/cellsync/cli"
)

const version = "0.1.0"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
