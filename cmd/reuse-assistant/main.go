package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/yourorg/reuse-assistant/cmd/reuse-assistant/commands"
	"github.com/yourorg/reuse-assistant/cmd/reuse-assistant/internal/clierr"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load environment variables from .env files if present. This helps local dev.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := commands.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return clierr.ExitCodeOf(err)
	}
	return 0
}
