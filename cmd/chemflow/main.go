// Command chemflow submits, drives and inspects chemistry workflow runs.
//
// Usage:
//
//	chemflow [--config URL] [--json] <command> [flags]
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/viant/chemflow/internal/cli"
)

// version is set with ldflags at build time
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
