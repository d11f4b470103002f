package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wjkennedy/cjm/internal/ingest"
	"github.com/wjkennedy/cjm/internal/query"
	"github.com/wjkennedy/cjm/internal/server"
	"github.com/wjkennedy/cjm/internal/watch"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload form, journey maps and JSON API",
		Long: `Start the HTTP server.

Routes:
  GET  /                                 customer list
  GET  /upload, POST /upload             upload a batch file (field json_file)
  GET  /visualize/{id}                   journey map page
  POST /api/batches                      ingest a JSON or YAML body
  GET  /api/customers                    customer ids
  GET  /api/customers/{id}/journey       ordered steps
  GET  /api/customers/{id}/graph         laid-out graph
  GET  /api/customers/{id}/figure        Plotly figure
  GET  /healthz, /metrics

With server.watch_dir set, files copied into that directory are ingested too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default: server.addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg, st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer closeStore(st)

	addr := opts.Addr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	logger := slog.Default()
	pipeline := ingest.New(st, nil, logger)
	srv := server.New(pipeline, query.New(st, logger), server.Options{
		UploadDir:      cfg.Server.UploadDir,
		DefaultVersion: cfg.Server.DefaultVersion,
		Layout:         cfg.LayoutOptions(),
		Logger:         logger,
	})

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, addr) })
	if cfg.Server.WatchDir != "" {
		w := watch.New(cfg.Server.WatchDir, pipeline, watch.Options{Logger: logger})
		g.Go(func() error { return w.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		return f.Fail("serve", err)
	}
	return nil
}
