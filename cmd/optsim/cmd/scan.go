package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/optsim/scanner"
	"github.com/rustyeddy/optsim/sim"
)

var scanCmd = &cobra.Command{
	Use:   "scan <kind>",
	Short: "Scan the current chain",
	Long: `Rank contracts in the chain at the session clock.

Kinds:
  high_iv         - implied volatility at or above a percentile of the chain
  unusual_volume  - volume at least a multiple of open interest
  near_money      - strikes within a percentage band of the underlying
  high_theta      - time decay at or above a threshold (the chain median by default)

Example:
  optsim scan high_iv --percentile 90 --limit 5`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

var scanOpts scanner.Options

func init() {
	rootCmd.AddCommand(scanCmd)

	f := scanCmd.Flags()
	f.Float64Var(&scanOpts.Percentile, "percentile", scanner.DefaultPercentile, "high_iv percentile threshold (0-100)")
	f.Float64Var(&scanOpts.VolumeOIRatio, "ratio", scanner.DefaultVolumeOIRatio, "unusual_volume volume/open interest ratio")
	f.Float64Var(&scanOpts.RangePct, "range", scanner.DefaultRangePct, "near_money band in percent of the underlying")
	f.Float64Var(&scanOpts.MinTheta, "min-theta", 0, "high_theta minimum |theta| (0 uses the median)")
	f.IntVarP(&scanOpts.Limit, "limit", "n", 0, "keep only the top n results")
	f.StringVarP(&chainExpiry, "expiry", "e", "", "only contracts expiring on YYYY-MM-DD")
}

func runScan(cmd *cobra.Command, args []string) error {
	kind, err := scanner.ParseKind(args[0])
	if err != nil {
		return err
	}
	return sessionRun(cmd, false, func(ctx context.Context, e *sim.Engine) (any, error) {
		ch, err := chainAt(e)
		if err != nil {
			return nil, err
		}
		rs, err := scanner.Run(kind, ch, scanOpts)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"scan":    kind,
			"time":    ch.Time,
			"count":   len(rs),
			"results": sim.Records(rs, scanner.Result.Record),
		}, nil
	})
}
