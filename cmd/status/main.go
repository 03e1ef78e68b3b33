package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/kampala-labs/momoflow/app/status"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	app := status.Initialize(ctx)

	app.Start(ctx)
}
