package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/sfp-labs/fellowship-portal/internal/storage"
)

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending submission ledger migrations",
	Long: `Apply the SQL migrations found in DATABASE_MIGRATIONS_DIR to DATABASE_DSN.

With --status, list every migration and whether it has been applied.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "list migrations without applying them")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled() {
		return errors.New("DATABASE_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	fsys := os.DirFS(cfg.Database.MigrationsDir)
	out := cmd.OutOrStdout()

	if migrateStatus {
		migrations, err := storage.ListMigrations(ctx, pool, fsys)
		if err != nil {
			return err
		}
		for _, m := range migrations {
			state := "pending"
			if m.Applied {
				state = "applied"
			}
			fmt.Fprintf(out, "%-8s %s\n", state, m.Name)
		}
		return nil
	}

	applied, err := storage.RunMigrations(ctx, pool, fsys)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "applied %d migration(s)\n", applied)
	return nil
}
