package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tendbot/alert"
	"tendbot/broker"
	"tendbot/broker/bitget"
	"tendbot/broker/paper"
	"tendbot/config"
	"tendbot/feed"
	"tendbot/internal/clock"
	"tendbot/internal/id"
	"tendbot/internal/metrics"
	"tendbot/internal/ops"
	"tendbot/journal"
	"tendbot/ledger"
	"tendbot/manager"
	"tendbot/market"
	"tendbot/monitor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a trading session from a config file",
	Long: `Open and tend positions for the configured candidates until
interrupted. The session ticks at a fixed interval; each tick fetches the
account and prices, advances every open position, and admits whatever
candidates still fit the risk budget.

Example:
  tendbot run -f tendbot.yaml`,
	RunE: runRun,
}

var (
	runConfigPath string
	runPaper      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().BoolVar(&runPaper, "paper", false, "force paper mode regardless of the configured exchange")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.LoadEnv()
	if runPaper {
		cfg.Exchange.Mode = "paper"
	}

	logger := buildLogger(cfg.Log)

	candidates, err := cfg.CandidateList()
	if err != nil {
		return fmt.Errorf("candidates: %w", err)
	}
	if len(candidates) == 0 {
		return errors.New("no candidates configured")
	}
	symbols := candidateSymbols(candidates)

	reg := metrics.New()
	book := ledger.New()

	jn, sq, err := buildJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	defer func() {
		if cerr := jn.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("journal close failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		gw     broker.Gateway
		paperX *paper.Exchange
		stream *bitget.Stream
	)
	switch cfg.Exchange.Mode {
	case "paper":
		paperX = paper.New(cfg.Exchange.PaperEquity)
		// Without a feed every symbol rests at its entry price, so a
		// session still opens positions and tends them from there.
		for _, c := range candidates {
			paperX.SetPrice(c.Symbol, c.EntryPrice)
		}
		jn = paper.Settle{Exchange: paperX, Next: jn}
		gw = paperX
	case "bitget":
		if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" || cfg.Exchange.Passphrase == "" {
			return errors.New("bitget credentials missing: set BITGET_API_KEY, BITGET_API_SECRET and BITGET_PASSPHRASE")
		}
		client := bitget.New(bitget.Config{
			BaseURL:    cfg.Exchange.BaseURL,
			APIKey:     cfg.Exchange.APIKey,
			APISecret:  cfg.Exchange.APISecret,
			Passphrase: cfg.Exchange.Passphrase,
			Symbols:    symbols,
		}, logger)
		for _, s := range symbols {
			if err := client.SetLeverage(ctx, s, int(cfg.Risk.Leverage)); err != nil {
				logger.Warn().Err(err).Str("symbol", s).Msg("set leverage failed")
			}
		}
		stream = bitget.NewStream(cfg.Exchange.WSURL, symbols, logger)
		client.UseStream(stream)
		gw = client
	default:
		return fmt.Errorf("unknown exchange mode %q", cfg.Exchange.Mode)
	}
	gw = broker.WithMetrics(gw, reg)

	asyncAlerts := alert.NewAsync(alert.NewLog(logger), 0)
	defer asyncAlerts.Close()
	al := alert.WithMetrics(asyncAlerts, reg)

	mgr := manager.New(manager.Settings{
		Risk:          cfg.Risk.Params(),
		EntryTimeout:  cfg.Monitor.EntryTimeout(),
		EscalateAfter: cfg.Monitor.FailureEscalation,
	}, book, gw, al, jn, logger)
	adm := manager.NewAdmission(candidates, cfg.Risk.Params(), book, mgr, logger)

	loop := monitor.New(monitor.Config{
		Interval:       cfg.Monitor.Interval(),
		RequestTimeout: cfg.Monitor.RequestTimeout(),
		Admit:          adm,
	}, gw, mgr, book, jn, reg, clock.Real{}, logger)

	sessionID := id.New()
	startedAt := time.Now()
	// In live mode this doubles as the credential check: a session that
	// cannot read its own account should not start placing orders.
	startAcct, _, err := gw.FetchPositionsAndPrices(ctx)
	if err != nil {
		if cfg.Exchange.Mode == "bitget" {
			return fmt.Errorf("exchange auth check: %w", err)
		}
		logger.Warn().Err(err).Msg("initial account fetch failed")
	}

	var wg sync.WaitGroup
	if cfg.Ops.Listen != "" {
		srv := ops.NewServer(book, reg, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx, cfg.Ops.Listen); err != nil {
				logger.Error().Err(err).Msg("ops server failed")
			}
		}()
	}
	if stream != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = stream.Run(ctx)
		}()
	}
	if paperX != nil && cfg.Exchange.FeedCSV != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := driveFeed(ctx, cfg.Exchange.FeedCSV, paperX, cfg.Monitor.Interval(), logger); err != nil {
				logger.Error().Err(err).Msg("price feed failed")
			}
		}()
	}

	logger.Info().
		Str("session_id", id.Short(sessionID)).
		Str("mode", cfg.Exchange.Mode).
		Int("candidates", len(candidates)).
		Float64("start_equity", startAcct.Equity).
		Msg("session starting")

	// One immediate pass opens the plan's trades now instead of an
	// interval from now; Run takes over from there.
	loop.Tick(ctx)
	runErr := loop.Run(ctx)
	stop()
	wg.Wait()

	endCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	endAcct, _, err := gw.FetchPositionsAndPrices(endCtx)
	cancel()
	if err != nil {
		logger.Warn().Err(err).Msg("final account fetch failed")
		endAcct = startAcct
	}

	writeSessionReport(sq, cfg, sessionID, startedAt, time.Now(), startAcct.Equity, endAcct.Equity, logger)

	var closed int
	var realized float64
	all := book.All()
	for _, p := range all {
		if p.State == ledger.Closed {
			closed++
		}
		realized += p.RealizedPnL
	}
	logger.Info().
		Str("session_id", id.Short(sessionID)).
		Int("positions", len(all)).
		Int("closed", closed).
		Float64("realized_pnl", realized).
		Float64("end_equity", endAcct.Equity).
		Msg("session over")
	return runErr
}

func candidateSymbols(candidates []market.Candidate) []string {
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !seen[c.Symbol] {
			seen[c.Symbol] = true
			out = append(out, c.Symbol)
		}
	}
	return out
}

// buildJournal returns the archive to write through, plus the SQLite
// handle when there is one so the session report can query it.
func buildJournal(jc config.JournalConfig) (journal.Journal, *journal.SQLiteJournal, error) {
	switch jc.Driver {
	case "sqlite":
		sq, err := journal.NewSQLite(jc.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return sq, sq, nil
	case "csv":
		cj, err := journal.NewCSV(jc.PositionsFile, jc.EquityFile)
		if err != nil {
			return nil, nil, err
		}
		return cj, nil, nil
	case "none", "":
		return journal.Nop{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown journal driver %q", jc.Driver)
	}
}

// driveFeed replays a recorded CSV into the paper venue, one timestamp
// batch per interval, so a paper session moves through its price history
// at tick pace.
func driveFeed(ctx context.Context, path string, x *paper.Exchange, every time.Duration, log zerolog.Logger) error {
	src, err := feed.OpenCSV(path, time.Time{}, time.Time{})
	if err != nil {
		return err
	}
	defer src.Close()

	rp := feed.NewReplay(src)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			at, ok, err := rp.Step(x)
			if err != nil {
				return err
			}
			if !ok {
				log.Info().Msg("price feed exhausted")
				return nil
			}
			log.Debug().Time("feed_time", at).Msg("price step applied")
		}
	}
}

func writeSessionReport(sq *journal.SQLiteJournal, cfg *config.Config, sessionID string, started, ended time.Time, startEq, endEq float64, log zerolog.Logger) {
	if sq == nil || cfg.Journal.OrgPath == "" {
		return
	}

	recs, err := sq.ListClosedBetween(started, ended)
	if err != nil {
		log.Warn().Err(err).Msg("session report query failed")
		return
	}

	rep := &journal.SessionReport{
		SessionID:   id.Short(sessionID),
		Mode:        cfg.Exchange.Mode,
		Started:     started,
		Ended:       ended,
		StartEquity: startEq,
		EndEquity:   endEq,
		OrgPath:     cfg.Journal.OrgPath,
	}
	rep.Summarize(recs)
	if err := rep.WriteOrg(); err != nil {
		log.Warn().Err(err).Msg("session report write failed")
		return
	}
	log.Info().Str("path", cfg.Journal.OrgPath).Msg("session report written")
}
