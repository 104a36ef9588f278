package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"path/filepath"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/iota-uz/hrm-import/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:       "migrate up|down|status",
		Short:     "Apply or inspect the database schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), cmd.OutOrStdout(), args[0], dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Migrations directory (default: MIGRATIONS_DIR)")
	return cmd
}

func runMigrate(ctx context.Context, out io.Writer, command, dir string) error {
	conf := configuration.Use()
	defer conf.Unload()
	if dir == "" {
		dir = conf.MigrationsDir
	}
	dir = filepath.Clean(dir)

	db, err := sql.Open("postgres", conf.Database.Opts)
	if err != nil {
		return withCode(exitDB, fmt.Errorf("db open failed: %w", err))
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return withCode(exitDB, fmt.Errorf("db ping failed: %w", err))
	}

	// goose reports applied versions and status lines through Printf.
	goose.SetLogger(log.New(out, "", 0))
	if err := goose.SetDialect("postgres"); err != nil {
		return withCode(exitDB, err)
	}

	switch command {
	case "up":
		err = goose.UpContext(ctx, db, dir)
	case "down":
		err = goose.DownContext(ctx, db, dir)
	case "status":
		err = goose.StatusContext(ctx, db, dir)
	default:
		return withCode(exitUsage, fmt.Errorf("unsupported migrate command %q (expected up|down|status)", command))
	}
	if err != nil {
		return withCode(exitDBWrite, fmt.Errorf("migrate %s: %w", command, err))
	}
	return nil
}
