package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/optsim/api"
	"github.com/rustyeddy/optsim/execution"
	"github.com/rustyeddy/optsim/internal/session"
	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/sim"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new simulation session",
	Long: `Open a session on an underlying at the first data timestamp on or after
the start date. Any saved session is replaced.

Example:
  optsim start --symbol SPY --date 2024-01-15 --cash 100000 --fill-model aggressive`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session clock, underlying price and account summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionRun(cmd, false, func(ctx context.Context, e *sim.Engine) (any, error) {
			st, err := e.Status()
			if err != nil {
				return nil, err
			}
			return st.Record(), nil
		})
	},
}

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Show the option chain at the session clock",
	Long: `List every contract quoted at the session clock with bid, ask, mark,
model price, implied volatility and Greeks.

Example:
  optsim chain --expiry 2024-01-19`,
	Args: cobra.NoArgs,
	RunE: runChain,
}

var orderCmd = &cobra.Command{
	Use:   "order <buy|sell> <contract> <quantity>",
	Short: "Submit an order against the current chain",
	Long: `Fill an order for an OCC contract symbol at the session clock. Without
--limit the order fills at the session's fill model price.

Example:
  optsim order buy SPY240119C00475000 10 --limit 6.50`,
	Args: cobra.ExactArgs(3),
	RunE: runOrder,
}

var stepCmd = &cobra.Command{
	Use:   "step [minutes]",
	Short: "Advance the session clock",
	Long: `Advance the clock by trading minutes (default 15), revalue positions and
settle any expired contracts.

Example:
  optsim step 30`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStep,
}

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open positions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionRun(cmd, false, func(ctx context.Context, e *sim.Engine) (any, error) {
			return positionsView(e)
		})
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show cash, P&L and portfolio Greeks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionRun(cmd, false, func(ctx context.Context, e *sim.Engine) (any, error) {
			a, err := e.Account()
			if err != nil {
				return nil, err
			}
			return a.Record(), nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List executed trades and expiry settlements",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionRun(cmd, false, func(ctx context.Context, e *sim.Engine) (any, error) {
			return historyView(e)
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write status, trade history and positions to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := session.Remove(cfg.Session.Path); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"status": "session cleared", "session": cfg.Session.Path})
	},
}

var (
	startSymbol    string
	startDate      string
	startCash      float64
	startFillModel string

	chainExpiry string
	orderLimit  float64
)

func init() {
	rootCmd.AddCommand(startCmd, statusCmd, chainCmd, orderCmd, stepCmd,
		positionsCmd, accountCmd, historyCmd, exportCmd, resetCmd)

	startCmd.Flags().StringVarP(&startSymbol, "symbol", "s", "", "underlying symbol (default from config)")
	startCmd.Flags().StringVarP(&startDate, "date", "d", "", "start date YYYY-MM-DD (default from config)")
	startCmd.Flags().Float64VarP(&startCash, "cash", "c", 0, "initial cash (default from config)")
	startCmd.Flags().StringVarP(&startFillModel, "fill-model", "f", "", "midpoint, aggressive or passive (default from config)")

	chainCmd.Flags().StringVarP(&chainExpiry, "expiry", "e", "", "only contracts expiring on YYYY-MM-DD")
	orderCmd.Flags().Float64Var(&orderLimit, "limit", 0, "limit price")
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(market.DateLayout, s)
	if err != nil {
		return time.Time{}, market.Errorf(market.KindInvalidInput, "%s must be YYYY-MM-DD, got %q", field, s)
	}
	return t, nil
}

// startDefaults are the new session parameters from config.
func startDefaults() (api.Defaults, error) {
	s := cfg.Simulation
	d := api.Defaults{Symbol: s.Symbol, InitialCash: s.InitialCash, FillModel: s.FillModel}
	if s.StartDate != "" {
		t, err := parseDate("simulation.start_date", s.StartDate)
		if err != nil {
			return d, err
		}
		d.Date = t
	}
	return d, nil
}

func runStart(cmd *cobra.Command, args []string) error {
	d, err := startDefaults()
	if err != nil {
		return err
	}
	if startSymbol != "" {
		d.Symbol = startSymbol
	}
	if startDate != "" {
		if d.Date, err = parseDate("date", startDate); err != nil {
			return err
		}
	}
	if startCash != 0 {
		d.InitialCash = startCash
	}
	if startFillModel != "" {
		d.FillModel = startFillModel
	}
	if d.Date.IsZero() {
		return market.Errorf(market.KindInvalidInput, "start date is required")
	}

	a, err := openApp(commandLogs(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.engine.Start(cmd.Context(), d.Symbol, d.Date, d.InitialCash, execution.FillModel(d.FillModel))
	if err != nil {
		return err
	}
	if err := a.save(); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), st.Record())
}

func runChain(cmd *cobra.Command, args []string) error {
	return sessionRun(cmd, false, func(ctx context.Context, e *sim.Engine) (any, error) {
		ch, err := chainAt(e)
		if err != nil {
			return nil, err
		}
		return ch.Record(), nil
	})
}

// chainAt reads the chain at the clock, filtered by --expiry.
func chainAt(e *sim.Engine) (sim.Chain, error) {
	var expiry time.Time
	if chainExpiry != "" {
		t, err := parseDate("expiry", chainExpiry)
		if err != nil {
			return sim.Chain{}, err
		}
		expiry = t
	}
	return e.Chain(expiry)
}

func runOrder(cmd *cobra.Command, args []string) error {
	qty, err := strconv.Atoi(args[2])
	if err != nil {
		return market.Errorf(market.KindInvalidOrder, "quantity must be an integer, got %q", args[2])
	}
	req := sim.OrderRequest{Side: args[0], Symbol: args[1], Quantity: qty}
	if cmd.Flags().Changed("limit") {
		limit := orderLimit
		req.Limit = &limit
	}
	return sessionRun(cmd, true, func(ctx context.Context, e *sim.Engine) (any, error) {
		tr, err := e.SubmitOrder(ctx, req)
		if err != nil {
			return nil, err
		}
		return tr.Record(), nil
	})
}

func runStep(cmd *cobra.Command, args []string) error {
	minutes := api.DefaultStepMinutes
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return market.Errorf(market.KindInvalidInput, "minutes must be an integer, got %q", args[0])
		}
		minutes = n
	}
	return sessionRun(cmd, true, func(ctx context.Context, e *sim.Engine) (any, error) {
		st, err := e.Step(ctx, minutes)
		if err != nil {
			return nil, err
		}
		return st.Record(), nil
	})
}

func positionsView(e *sim.Engine) (map[string]any, error) {
	ps, err := e.Positions()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"count":     len(ps),
		"positions": sim.Records(ps, sim.PositionRecord),
	}, nil
}

func historyView(e *sim.Engine) (map[string]any, error) {
	hist, err := e.History()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"count":       len(hist),
		"trades":      sim.Records(hist, sim.Trade.Record),
		"settlements": sim.Records(e.Settlements(), sim.SettlementRecord),
	}, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	path := args[0]
	return sessionRun(cmd, false, func(ctx context.Context, e *sim.Engine) (any, error) {
		st, err := e.Status()
		if err != nil {
			return nil, err
		}
		hist, err := historyView(e)
		if err != nil {
			return nil, err
		}
		pos, err := positionsView(e)
		if err != nil {
			return nil, err
		}

		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create export: %w", err)
		}
		defer f.Close()
		if err := printJSON(f, map[string]any{
			"status":    st.Record(),
			"history":   hist,
			"positions": pos,
		}); err != nil {
			return nil, fmt.Errorf("write export: %w", err)
		}
		return map[string]any{"exported": path, "trades": hist["count"]}, nil
	})
}
