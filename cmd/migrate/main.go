package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/migrations"
)

// commands forwarded to goose against the embedded migrations
var dbCommands = map[string]bool{
	"up":        true,
	"up-by-one": true,
	"up-to":     true,
	"down":      true,
	"down-to":   true,
	"redo":      true,
	"reset":     true,
	"status":    true,
	"version":   true,
}

const usage = "usage: migrate <up|up-by-one|up-to N|down|down-to N|redo|reset|status|version|create NAME>"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	command, rest := args[0], args[1:]

	if command == "create" {
		// writes into the source tree, no database involved
		if len(rest) == 0 {
			return fmt.Errorf("create needs a migration name")
		}
		return goose.Create(nil, "./migrations", strings.Join(rest, "_"), "sql")
	}
	if !dbCommands[command] {
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if d := cfg.Database.Driver; d != "" && d != "postgres" {
		return fmt.Errorf("migrations only run against postgres, configured driver is %q", d)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.RunContext(ctx, command, db, ".", rest...)
}
