package main

import (
	"context"
	"os"

	zlog "github.com/rs/zerolog/log"
)

func main() {
	ctx := zlog.Logger.WithContext(context.Background())

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
