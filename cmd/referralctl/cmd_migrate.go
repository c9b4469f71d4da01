package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"referral-engine/internal/config"
	"referral-engine/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the referral tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		return database.AutoMigrate(db)
	},
}

var applySQLCmd = &cobra.Command{
	Use:   "apply-sql <file>",
	Short: "Execute a hand-written SQL migration file",
	Long: `Execute a SQL file in a single transaction. Use it for changes AutoMigrate
cannot express, such as backfills or partial indexes.

Example:
  referralctl apply-sql migrations/002_referrals_expires_idx.sql`,
	Args: cobra.ExactArgs(1),
	RunE: runApplySQL,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(applySQLCmd)
}

func runApplySQL(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadForCLI()
	if err != nil {
		return err
	}

	migrationSQL, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(migrationSQL)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log.Info().Str("file", args[0]).Msg("Migration applied")
	return nil
}
