package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/tokenauth/internal/admin"
	"github.com/dmitrijs2005/tokenauth/internal/logging"
	"github.com/dmitrijs2005/tokenauth/internal/server/config"
)

func main() {
	if len(os.Args) < 2 {
		admin.Usage(os.Stderr)
		os.Exit(2)
	}

	cfg, err := config.Load(os.Args[2:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)
	app := admin.NewApp(cfg, logger, os.Stdin, os.Stdout)

	if err := app.Run(context.Background(), os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
