package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/optsim/api"
	"github.com/rustyeddy/optsim/internal/logger"
	"github.com/rustyeddy/optsim/internal/session"
	"github.com/rustyeddy/optsim/sim"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session over a JSON HTTP API",
	Long: `Run an HTTP server for one simulator session. The saved session is
resumed when there is one, and every successful start, order and step is
saved back to the session file, so the CLI and the API can drive the same
session in turn.

Routes:
  POST /api/start       GET /api/status     GET /api/chain?expiry=
  POST /api/orders      POST /api/step      GET /api/positions
  GET  /api/account     GET /api/history    POST /api/reset
  GET  /api/scan/:kind  GET /health

Example:
  optsim serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddr  string
	serveFresh bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveFresh, "fresh", false, "ignore the saved session")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(logger.Setup(logPath))
	if err != nil {
		return err
	}
	defer a.Close()

	if !serveFresh && session.Exists(cfg.Session.Path) {
		if err := a.resume(cmd.Context()); err != nil {
			log.Printf("[API] saved session not resumed: %v", err)
		}
	}

	defaults, err := startDefaults()
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	gin.SetMode(gin.ReleaseMode)
	srv := api.NewServer(a.engine, api.Options{
		Addr:     addr,
		Defaults: defaults,
		Persist: func(st sim.SessionState) error {
			return session.Save(cfg.Session.Path, st)
		},
		Logger: log.Default(),
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case <-sigChan:
	}

	log.Println("[API] shutting down")
	return srv.Shutdown()
}
