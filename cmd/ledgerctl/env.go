package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/atmx/ledger-engine/internal/app"
	"github.com/atmx/ledger-engine/internal/config"
	"github.com/atmx/ledger-engine/internal/logging"
)

// As a short lived CLI the global flags are fine as package variables.

var (
	dbPath   = flag.String("db", "ledger.db", "SQLite ledger file, used when DATABASE_URL and SQLITE_PATH are unset")
	plain    = flag.Bool("plain", false, "print raw markdown instead of rendering it")
	logLevel = flag.String("log-level", "warn", "log level written to stderr")
)

// openApp loads the environment configuration and opens the ledger. The
// in-memory store is never used: without a database the -db file is. The
// ledger assumes a single writer, so do not point it at the store of a
// running server.
func openApp(ctx context.Context) (*app.App, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cfg, err
	}
	if cfg.StoreKind() == "memory" {
		cfg.SQLitePath = *dbPath
	}

	logger, err := logging.New(*logLevel)
	if err != nil {
		return nil, cfg, err
	}
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("open ledger", zap.Error(err))
		return nil, cfg, err
	}
	return a, cfg, nil
}

// printMarkdown renders md for the terminal.
func printMarkdown(md string) {
	if *plain {
		fmt.Print(md)
		return
	}
	out, err := glamour.Render(md, "dark")
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
