package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"referral-engine/internal/config"
	"referral-engine/internal/database"
	"referral-engine/internal/logging"
)

var (
	logLevel string
	pretty   bool
)

// rootCmd is the base command for the referral operator CLI
var rootCmd = &cobra.Command{
	Use:   "referralctl",
	Short: "Operate the referral and reward engine",
	Long: `referralctl runs schema migrations and maintenance tasks against the
referral engine database. Connection settings come from the same environment
variables as the server (DATABASE_URL or DB_HOST, DB_PORT, ...).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logLevel, pretty)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "Human readable log output")
}

// openDB loads configuration and connects to the database
func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.LoadForCLI()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Connect(cfg.GetDSN())
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
