package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subforge/subforge/internal/acquire"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd, cleanup := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	_ = cleanup()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if hint := acquire.Hint(err); hint != "" {
				fmt.Fprintf(os.Stderr, "\n%s\n", hint)
			}
		}
		os.Exit(1)
	}
}
