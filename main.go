package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/minato-lab/leavesync/pkg/cli"
)

var version = "dev"

func main() {
	// Missing .env is fine, environment variables still apply
	_ = godotenv.Load()

	if err := cli.Run(context.Background(), os.Args, version); err != nil {
		os.Exit(1)
	}
}
