// Package main implements the c2s CLI, which migrates CUDA C++ sources to
// SYCL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/l3aro/cuda2sycl/cmd/c2s/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.SetVersion(version, buildTime)
	commands.RootCmd.SetVersionTemplate("c2s version {{.Version}}\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := commands.RootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(commands.ExitCode(err))
}
