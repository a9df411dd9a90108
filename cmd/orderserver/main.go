package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/svcprobe/internal/testutil/orderserver"
)

// main runs the reference order server as a standalone executable. Harness
// sessions can point server.command at it instead of the Python server.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := orderserver.RunFromEnv(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
