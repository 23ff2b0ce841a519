// rnc relays stdin/stdout over TCP, connecting to or listening for peers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rnc/cmd"
	"rnc/internal/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)

	err := cmd.Execute(ctx, os.Args[1:])
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rnc: %v\n", err)
		os.Exit(errors.ExitCode(err))
	}
}
