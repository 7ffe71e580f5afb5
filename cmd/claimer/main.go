package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/promoclaim/internal/app"
	"github.com/dmitrijs2005/promoclaim/internal/buildinfo"
	"github.com/dmitrijs2005/promoclaim/internal/config"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	a, err := app.NewApp(ctx, cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
