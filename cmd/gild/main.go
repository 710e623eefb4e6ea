package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.followtheprocess.codes/gild/internal/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cmd.Execute(ctx, os.Stderr)

	cancel()
	os.Exit(code)
}
