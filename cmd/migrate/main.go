// Command migrate manages the PostgreSQL schema.
//
//	migrate [up|status|reset]
//
// reset rolls back every migration and requires -force.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cotiza/cotiza/internal/config"
	"github.com/cotiza/cotiza/internal/store/postgres"
)

func main() {
	force := flag.Bool("force", false, "allow destructive commands")
	flag.Parse()

	cmd := "up"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	if err := run(cmd, *force); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func run(cmd string, force bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.UsesPostgres() {
		return fmt.Errorf("DB_HOST is not set")
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	switch cmd {
	case "up":
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		fmt.Println("✓ migrations applied")
	case "status":
		return db.MigrationStatus(ctx)
	case "reset":
		if !force {
			return fmt.Errorf("refusing to drop all data without -force")
		}
		if err := db.Reset(ctx); err != nil {
			return err
		}
		fmt.Println("✓ schema reset")
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}
