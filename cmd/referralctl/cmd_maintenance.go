package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"referral-engine/internal/metrics"
	"referral-engine/internal/repository"
	"referral-engine/internal/services"
)

var expiryReportCmd = &cobra.Command{
	Use:   "expiry-report",
	Short: "Count open referrals that have lazily expired",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		report, err := engine.Referrals.ExpiryReport(cmd.Context())
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var recountCmd = &cobra.Command{
	Use:   "recount <advocate-id>",
	Short: "Rebuild an advocate's referral count from its rewards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		advocateID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid advocate id %q: %w", args[0], err)
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}

		count, err := engine.Rewards.RecountReferrals(cmd.Context(), advocateID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "advocate %s referral_count=%d\n", advocateID, count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(expiryReportCmd)
	rootCmd.AddCommand(recountCmd)
}

func newEngine() (*services.Engine, error) {
	cfg, db, err := openDB()
	if err != nil {
		return nil, err
	}
	repo := repository.NewRepository(db)
	return services.NewEngine(repo, cfg.Referral, clockwork.NewRealClock(), metrics.New(nil), nil), nil
}
