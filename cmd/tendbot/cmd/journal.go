package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tendbot/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query archived positions",
	Long: `Query and display archived positions from the SQLite journal.

Subcommands:
  position - Show one archived position by ID
  today    - List positions closed today
  day      - List positions closed on a specific day

Examples:
  tendbot journal position <position-id>
  tendbot journal today
  tendbot journal day 2026-08-20`,
}

var journalPositionCmd = &cobra.Command{
	Use:   "position <position-id>",
	Short: "Show one archived position",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalPosition,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List positions closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List positions closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalPositionCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./tendbot.db", "path to SQLite journal DB")
}

func runJournalPosition(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetPosition(args[0])
	if err != nil {
		return fmt.Errorf("get position: %w", err)
	}

	fmt.Println(journal.FormatPositionOrg(rec))
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	loc := time.Local
	return listDay(time.Now().In(loc).Format("2006-01-02"), loc)
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return listDay(args[0], time.Local)
}

func listDay(day string, loc *time.Location) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	start, end, err := dayBounds(loc, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query positions: %w", err)
	}

	fmt.Println(journal.FormatPositionsOrg(recs))
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.Add(24 * time.Hour), nil
}
