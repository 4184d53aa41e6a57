package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/optsim/journal"
	"github.com/rustyeddy/optsim/market"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query journal fills and equity",
	Long: `Query fills and equity snapshots from a SQLite or Postgres journal.

The journal comes from the journal config section, or --db for a SQLite
file.

Subcommands:
  fill    - Get a single fill by id
  fills   - List fills recorded on a day
  equity  - List equity snapshots recorded on a day

Examples:
  optsim journal fill 01HN3Z5V8Q2D4X0T9JYQK7C1WE
  optsim journal fills 2024-01-16
  optsim journal equity 2024-01-16 --db ./optsim.sqlite`,
}

var journalFillCmd = &cobra.Command{
	Use:   "fill <fill-id>",
	Short: "Get details of a single fill",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalFill,
}

var journalFillsCmd = &cobra.Command{
	Use:   "fills <YYYY-MM-DD>",
	Short: "List fills recorded on a day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalFills,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity <YYYY-MM-DD>",
	Short: "List equity snapshots recorded on a day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalEquity,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalFillCmd)
	journalCmd.AddCommand(journalFillsCmd)
	journalCmd.AddCommand(journalEquityCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB")
}

func openJournal() (*journal.SQL, error) {
	if journalDBPath != "" {
		return journal.NewSQLite(journalDBPath)
	}
	switch o := cfg.Journal; strings.ToLower(o.Type) {
	case journal.TypeSQLite:
		return journal.NewSQLite(o.DBPath)
	case journal.TypePostgres:
		return journal.NewPostgres(o.DSN)
	}
	return nil, market.Errorf(market.KindInvalidInput, "journal type %q cannot be queried, use --db or a sqlite/postgres journal", cfg.Journal.Type)
}

// dayRange is [day 00:00, next day 00:00).
func dayRange(s string) (time.Time, time.Time, error) {
	day, err := parseDate("day", s)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return day, day.AddDate(0, 0, 1), nil
}

func runJournalFill(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetFill(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get fill: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), rec)
}

func runJournalFills(cmd *cobra.Command, args []string) error {
	start, end, err := dayRange(args[0])
	if err != nil {
		return err
	}
	j, err := openJournal()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.FillsBetween(cmd.Context(), start, end)
	if err != nil {
		return fmt.Errorf("list fills: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{"day": args[0], "count": len(recs), "fills": recs})
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	start, end, err := dayRange(args[0])
	if err != nil {
		return err
	}
	j, err := openJournal()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	snaps, err := j.EquityBetween(cmd.Context(), start, end)
	if err != nil {
		return fmt.Errorf("list equity: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{"day": args[0], "count": len(snaps), "equity": snaps})
}
