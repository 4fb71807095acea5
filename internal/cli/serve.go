package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pcbmesh/pkg/api"
	"github.com/matzehuels/pcbmesh/pkg/observability"
)

const shutdownTimeout = 10 * time.Second

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
		metrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve conversions over HTTP. Gerber files are uploaded as multipart form
parts named after their layer (edge_cuts, top_copper, ...) or classified
by file name.

  POST /v1/convert?format=stl&thickness=1.6&colors=true
  POST /v1/analyze?detailed=true
  GET  /v1/version
  GET  /healthz
  GET  /metrics`,
		Example: `  pcbmesh serve --addr :8080
  curl -F edge_cuts=@board-Edge_Cuts.gbr -F top_copper=@board-F_Cu.gbr \
    'localhost:8080/v1/convert?format=stl' -o board.stl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = c.Config.Server.Addr
			}
			return c.runServe(cmd.Context(), addr, noCache, metrics)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&metrics, "metrics", true, "serve counters on /metrics")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string, noCache, metrics bool) error {
	defaults, err := c.baseOptions()
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts := api.Options{
		Defaults:  defaults,
		MaxUpload: int64(c.Config.Server.MaxUploadMB) << 20,
		Timeout:   c.Config.Server.Timeout,
		Logger:    c.Logger,
	}
	if metrics {
		counters := observability.NewCounters()
		observability.SetPipelineHooks(counters)
		observability.SetCacheHooks(counters)
		observability.SetHTTPHooks(counters)
		defer observability.Reset()
		opts.Metrics = counters
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.New(runner, opts),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	c.Logger.Info("serving", "addr", ln.Addr().String(), "cache", c.Config.Cache.Backend, "metrics", metrics)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
