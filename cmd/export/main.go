package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/kampala-labs/momoflow/app/export"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	app := export.Initialize(ctx)

	app.Start(ctx)
}
