package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/optsim/config"
	"github.com/rustyeddy/optsim/sim"
)

var rootCmd = &cobra.Command{
	Use:   "optsim",
	Short: "An options market replay simulator",
	Long: `Optsim replays historical or synthetic option chains and lets you trade
against them one step at a time.

It provides tools for:
  - Black-Scholes-Merton pricing, Greeks and implied volatility
  - Order fills with midpoint, aggressive and passive models and size slippage
  - Position, cash and P&L accounting with expiry settlement
  - Chain scans for high IV, unusual volume, near-the-money and high theta
  - A JSON HTTP API over the same session

State is kept in a session file between invocations, so a session can be
driven one command at a time:

  optsim start --symbol SPY --date 2024-01-15 --cash 100000
  optsim chain --expiry 2024-01-19
  optsim order buy SPY240119C00475000 10 --limit 6.50
  optsim step 30
  optsim account`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

var (
	cfgFile     string
	envFile     string
	sessionPath string
	dataPath    string
	logPath     string
	verbose     bool

	cfg *config.Config
)

// Execute adds all child commands to the root command and sets flags appropriately.
// A failure is printed to stderr as a JSON error record.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (YAML or JSON)")
	pf.StringVar(&envFile, "env", ".env", "dotenv file with OPTIONS_SIM_* overrides")
	pf.StringVar(&sessionPath, "session", "", "session file (default ~/.options-sim/session.json)")
	pf.StringVar(&dataPath, "data", "", "directory or CSV file of option quotes")
	pf.StringVar(&logPath, "log", "", "append log output to this file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log simulator events to stderr")
}

// loadConfig resolves the configuration for every command: the file,
// then the environment, then command line flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	c := config.Default()
	if cfgFile != "" {
		loaded, err := config.LoadFromFile(cfgFile)
		if err != nil {
			return err
		}
		c = loaded
	}
	if err := c.ApplyEnv(envFile); err != nil {
		return err
	}
	if sessionPath != "" {
		c.Session.Path = sessionPath
	}
	if dataPath != "" {
		c.Data.Source = "csv"
		c.Data.Path = dataPath
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg = c
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printError(w io.Writer, err error) {
	_ = printJSON(w, sim.ErrorRecord(err))
}
