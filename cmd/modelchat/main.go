// Command modelchat is a terminal chat host for a local language model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"modelchat/internal/config"
)

// version is set at link time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "modelchat:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if config.IsModelFileNotFound(err) {
		return 2
	}
	return 1
}
