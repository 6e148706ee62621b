package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/ardnew/muge/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.Execute(ctx, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "mugectl:", err)
		stop()
		os.Exit(1)
	}
}
