package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ecgview/cmd/client/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCmd().ExecuteContext(ctx); err != nil {
		// form failures were already shown by the terminal view
		if !commands.Shown(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}
