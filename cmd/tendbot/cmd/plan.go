package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tendbot/broker"
	"tendbot/config"
	"tendbot/risk"
	"tendbot/selector"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview selection and sizing without placing orders",
	Long: `Run candidate selection and position sizing against a hypothetical
account and print what a live session would open first.

Example:
  tendbot plan -f tendbot.yaml -e 300`,
	RunE: runPlan,
}

var (
	planConfigPath string
	planEquity     float64
)

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&planConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	planCmd.Flags().Float64VarP(&planEquity, "equity", "e", 0, "account equity to plan against (defaults to paper_equity)")
	planCmd.MarkFlagRequired("config")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(planConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	candidates, err := cfg.CandidateList()
	if err != nil {
		return fmt.Errorf("candidates: %w", err)
	}
	if len(candidates) == 0 {
		return errors.New("no candidates configured")
	}

	equity := planEquity
	if equity <= 0 {
		equity = cfg.Exchange.PaperEquity
	}
	if equity <= 0 {
		return errors.New("no equity to plan against: pass --equity or set exchange.paper_equity")
	}

	params := cfg.Risk.Params()
	fmt.Printf("Plan for $%.2f equity:\n", equity)
	fmt.Printf("  Risk ceiling: $%.2f (%.1f%% of equity)\n", equity*params.MaxAccountRiskPct, params.MaxAccountRiskPct*100)
	fmt.Printf("  Per trade:    $%.2f at %gx leverage, %d slots\n\n", params.RiskPerTradeUSD, params.Leverage, params.MaxPositions)

	admitted := 0
	acct := broker.AccountSnapshot{Equity: equity}
	for c := range selector.Select(candidates, acct, params, nil) {
		size, err := risk.ComputeSize(equity, params, c)
		if err != nil {
			fmt.Printf("  -  %-10s %-5s %-12s would be admitted but sizes to zero\n",
				c.Symbol, c.Side, c.Confidence)
			continue
		}
		admitted++
		fmt.Printf("  %d. %-10s %-5s %-12s entry %-10g stop %-10g target %-10g qty %-10g risk $%.2f\n",
			admitted, c.Symbol, c.Side, c.Confidence,
			c.EntryPrice, c.StopLossPrice, c.TargetPrice, size.Quantity, size.RiskUSD)
		fmt.Printf("     partial at %g, forced close after %.0fh\n",
			c.Halfway(), params.TimeLimitHours)
	}

	fmt.Printf("\nAdmitted %d of %d candidates.\n", admitted, len(candidates))
	if admitted < len(candidates) {
		fmt.Println("The rest are blocked by the risk ceiling, the slot limit, or sizing.")
	}
	return nil
}
