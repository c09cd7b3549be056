package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dastanaron/bookmarktree/internal/server"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local database over HTTP",
		Long: `Expose the database as a JSON API with a websocket at /socket/ that
signals every change, so several TUIs can share one tree.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().String("listen", "", "listen address (default 127.0.0.1:8080)")
	c.bind("listen_addr", cmd.Flags().Lookup("listen"))
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	log, err := c.stderrLogger()
	if err != nil {
		return err
	}
	repo, err := c.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	opts := server.Options{
		Log:            log,
		ResolveTimeout: c.cfg.RequestTimeout,
		CORSOrigins:    c.cfg.CORSOrigins,
	}
	if c.cfg.ResolveTitles {
		opts.Resolver = server.HTMLResolver{Client: &http.Client{Timeout: c.cfg.RequestTimeout}}
	}
	srv := server.New(repo, opts)

	httpServer := &http.Server{
		Addr:        c.cfg.ListenAddr,
		Handler:     srv.Handler(),
		ReadTimeout: 15 * time.Second,
		// Websocket connections stay open, so no write timeout.
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signalContext(ctx)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", c.cfg.ListenAddr).Info("server starting")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
