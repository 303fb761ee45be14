package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tendbot/broker/bitget"
	"tendbot/config"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Verify exchange credentials",
	Long: `Check that the configured Bitget credentials sign correctly.

Credentials come from the environment (BITGET_API_KEY, BITGET_API_SECRET,
BITGET_PASSPHRASE), optionally via a .env file.

Example:
  tendbot auth -f tendbot.yaml`,
	RunE: runAuth,
}

var authConfigPath string

func init() {
	rootCmd.AddCommand(authCmd)

	authCmd.Flags().StringVarP(&authConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	authCmd.MarkFlagRequired("config")
}

func runAuth(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(authConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.LoadEnv()

	if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" || cfg.Exchange.Passphrase == "" {
		return errors.New("credentials missing: set BITGET_API_KEY, BITGET_API_SECRET and BITGET_PASSPHRASE")
	}

	candidates, err := cfg.CandidateList()
	if err != nil {
		return fmt.Errorf("candidates: %w", err)
	}

	client := bitget.New(bitget.Config{
		BaseURL:    cfg.Exchange.BaseURL,
		APIKey:     cfg.Exchange.APIKey,
		APISecret:  cfg.Exchange.APISecret,
		Passphrase: cfg.Exchange.Passphrase,
		Symbols:    candidateSymbols(candidates),
	}, buildLogger(cfg.Log))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	venueTime, err := client.ServerTime(ctx)
	if err != nil {
		return fmt.Errorf("exchange unreachable: %w", err)
	}
	drift := time.Since(venueTime).Round(time.Millisecond)
	fmt.Printf("✓ Exchange reachable (server time %s, local drift %s)\n",
		venueTime.UTC().Format(time.RFC3339), drift)

	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("credentials rejected: %w", err)
	}
	fmt.Println("✓ Credentials accepted")

	acct, prices, err := client.FetchPositionsAndPrices(ctx)
	if err != nil {
		return fmt.Errorf("account fetch failed: %w", err)
	}
	fmt.Printf("✓ Account readable: equity $%.2f, available $%.2f, %d open position(s)\n",
		acct.Equity, acct.AvailableMargin, acct.OpenPositionCount)
	for sym, px := range prices {
		fmt.Printf("    %s last %g\n", sym, px)
	}
	return nil
}
