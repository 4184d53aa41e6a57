package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/optsim/data"
	"github.com/rustyeddy/optsim/internal/logger"
	"github.com/rustyeddy/optsim/internal/session"
	"github.com/rustyeddy/optsim/journal"
	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/pricing"
	"github.com/rustyeddy/optsim/sim"
)

// app is one invocation's simulator with its collaborators.
type app struct {
	engine  *sim.Engine
	journal journal.Journal
	logs    io.Closer
}

// openApp builds the simulator described by cfg. logs is the log file
// handle, closed with the app.
func openApp(logs io.Closer) (*app, error) {
	bs, err := pricing.New(cfg.Pricing.Backend)
	if err != nil {
		logs.Close()
		return nil, err
	}
	provider, err := openProvider(bs)
	if err != nil {
		logs.Close()
		return nil, err
	}
	j, err := journal.Open(cfg.Journal)
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}

	s := cfg.Simulation
	e, err := sim.NewEngine(sim.Options{
		Provider:          provider,
		Pricing:           bs,
		Policy:            cfg.Execution,
		RiskFreeRate:      s.RiskFreeRate,
		DividendYield:     s.DividendYield,
		DefaultVolatility: s.DefaultVolatility,
		Journal:           j,
		Logger:            log.Default(),
	})
	if err != nil {
		j.Close()
		logs.Close()
		return nil, err
	}
	return &app{engine: e, journal: j, logs: logs}, nil
}

func openProvider(bs pricing.Engine) (data.Provider, error) {
	cal, err := cfg.Data.Calendar()
	if err != nil {
		return nil, err
	}
	if cfg.Data.Source == "csv" {
		return data.LoadCSV(cfg.Data.Path, cal)
	}
	ds, err := data.Generate(cfg.Data.Synthetic, cal, bs)
	if err != nil {
		return nil, err
	}
	return ds.Provider(cal)
}

func (a *app) Close() {
	if err := a.journal.Close(); err != nil {
		log.Printf("close journal: %v", err)
	}
	a.logs.Close()
}

// commandLogs sends the standard logger to the --log file, and to stderr
// with --verbose.
func commandLogs(cmd *cobra.Command) io.Closer {
	var w io.Writer = io.Discard
	if verbose {
		w = cmd.ErrOrStderr()
	}
	return logger.Attach(log.Default(), logPath, w)
}

// resume restores the saved session.
func (a *app) resume(ctx context.Context) error {
	st, err := session.Load(cfg.Session.Path)
	if errors.Is(err, session.ErrNoSession) {
		return market.Errorf(market.KindInvalidState, "%v", err)
	}
	if err != nil {
		return err
	}
	return a.engine.Restore(ctx, st)
}

func (a *app) save() error {
	st, err := a.engine.Snapshot()
	if err != nil {
		return err
	}
	return session.Save(cfg.Session.Path, st)
}

// sessionRun resumes the saved session, runs fn against it and prints
// what fn returns. The session is saved again when save is set and fn
// succeeded.
func sessionRun(cmd *cobra.Command, save bool, fn func(ctx context.Context, e *sim.Engine) (any, error)) error {
	a, err := openApp(commandLogs(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.resume(ctx); err != nil {
		return err
	}
	out, err := fn(ctx, a.engine)
	if err != nil {
		return err
	}
	if save {
		if err := a.save(); err != nil {
			return err
		}
	}
	return printJSON(cmd.OutOrStdout(), out)
}
