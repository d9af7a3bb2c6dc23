package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/zjrosen/claudecode/internal/config"
	"github.com/zjrosen/claudecode/internal/flags"
	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/server"
	"github.com/zjrosen/claudecode/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve chat over HTTP, SSE and WebSocket",
	Long: `Serve the chat engine over HTTP.

Routes:
  GET  /health           liveness and active run count
  GET  /chat?prompt=...  one-shot reply as JSON, or SSE with stream=true
  POST /chat             same, with a JSON body
  GET  /ws               WebSocket chat with abort support
  GET  /runs             in-flight runs
  GET  /runs/events      run lifecycle as SSE
  DELETE /runs/{id}      abort a run
  GET  /logs/ws          live debug log (flags.log-stream)

The claude section of the config file is reloaded on change.`,
	RunE: runServe,
}

var (
	serveAddr    string
	serveNoWatch bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "address to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "do not reload the config file on change")
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := newEngine(cfg, false)
	if err != nil {
		return err
	}
	defer e.Close()

	srv := server.New(cfg.Claude.Options(),
		server.WithClientOptions(e.opts...),
		server.WithFlags(featureSet),
		server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	var w *watcher.Watcher
	if path := viper.ConfigFileUsed(); path != "" && !serveNoWatch {
		w, err = watcher.New(watcher.Config{Path: path})
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info(log.CatServer, "listening", "addr", addr)
		fmt.Fprintf(cmd.OutOrStdout(), "claudecode serving on http://%s\n", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if w != nil {
		g.Go(func() error {
			return w.Run(gctx, func() { reloadConfig(srv) })
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(cmd.OutOrStdout(), "shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		srv.Shutdown(shutdownCtx)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.ErrorErr(log.CatServer, "http shutdown", err)
		}
		return nil
	})

	return g.Wait()
}

// reloadConfig re-reads the config file and applies the claude section to
// later requests. An invalid file keeps the running options.
func reloadConfig(srv *server.Server) {
	if err := viper.ReadInConfig(); err != nil {
		log.ErrorErr(log.CatConfig, "reloading config", err)
		return
	}
	next, err := config.Load(viper.GetViper())
	if err != nil {
		log.ErrorErr(log.CatConfig, "reloaded config is invalid, keeping previous", err)
		return
	}
	srv.SetOptions(next.Claude.Options())
	if flags.New(next.Flags).Enabled(flags.FlagLogStream) != featureSet.Enabled(flags.FlagLogStream) {
		log.Warn(log.CatConfig, "flags.log-stream changes need a restart")
	}
	log.Info(log.CatConfig, "config reloaded", "path", viper.ConfigFileUsed(), "model", next.Claude.Model)
}
