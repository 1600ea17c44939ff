package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pders01/feedscout/internal/api"
	"github.com/pders01/feedscout/internal/debuglog"
	"github.com/pders01/feedscout/internal/tui"
)

const shutdownTimeout = 5 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		showBanner(cmd)
		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		ctx := cmd.Context()
		svc := newService()
		go svc.RunCleanup(ctx)

		srv := &http.Server{
			Addr:              addr,
			Handler:           api.NewServer(api.NewHandler(svc, Version), cfg.Server.APIKey),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()
		printStatus(cmd, tui.StatusSuccess, fmt.Sprintf("Listening on http://%s", addr))
		if cfg.Server.APIKey == "" {
			printStatus(cmd, tui.StatusWarn, "No API key configured; /api is open")
		}

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			debuglog.Infof("Shutting down API server on %s", addr)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
}
